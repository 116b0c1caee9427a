package observability

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type ruleFile struct {
	Groups []struct {
		Name  string      `yaml:"name"`
		Rules []alertRule `yaml:"rules"`
	} `yaml:"groups"`
}

var metricName = regexp.MustCompile(`mutextalk_[a-z_]+`)

func loadRules(t *testing.T) []alertRule {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "mutextalk.yml"))
	require.NoError(t, err)

	var file ruleFile
	require.NoError(t, yaml.Unmarshal(data, &file))
	for _, g := range file.Groups {
		if g.Name == "mutextalk" {
			return g.Rules
		}
	}
	t.Fatal("mutextalk alert group missing")
	return nil
}

// exportedNames lists every series family the service registers, with
// histogram and counter suffixes expanded.
func exportedNames(t *testing.T) map[string]bool {
	t.Helper()
	m := NewMetrics()
	m.TrackPermit(func() (bool, bool) { return false, true })
	m.ObserveCommand("STATUS", 0)
	m.ObserveAcquire("granted")
	m.AuditSinkFailed("file")
	m.requestsTotal.WithLabelValues("/", "200").Inc()
	m.requestDuration.WithLabelValues("/").Observe(0.1)

	families, err := m.registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
		names[f.GetName()+"_bucket"] = true
		names[f.GetName()+"_sum"] = true
		names[f.GetName()+"_count"] = true
	}
	return names
}

func TestAlertRulesDocumented(t *testing.T) {
	expected := map[string]struct {
		severity string
		runbook  string
	}{
		"AuditSinkFailing": {"critical", "docs/runbook.md#audit-sink-failing"},
		"PermitStuck":      {"warning", "docs/runbook.md#permit-stuck"},
		"HighErrorRate":    {"warning", "docs/runbook.md#high-error-rate"},
	}

	rules := loadRules(t)
	require.Len(t, rules, len(expected))
	for _, rule := range rules {
		want, ok := expected[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		assert.Equal(t, want.severity, rule.Labels["severity"], rule.Alert)
		assert.Equal(t, want.runbook, rule.Annotations["runbook"], rule.Alert)
		assert.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		assert.NotEmpty(t, rule.Annotations["description"], rule.Alert)
		assert.NotEmpty(t, rule.For, rule.Alert)
	}
}

func TestAlertRulesReferenceExportedMetrics(t *testing.T) {
	names := exportedNames(t)
	for _, rule := range loadRules(t) {
		refs := metricName.FindAllString(rule.Expr, -1)
		require.NotEmpty(t, refs, "rule %s queries no service metric", rule.Alert)
		for _, ref := range refs {
			assert.True(t, names[ref], "rule %s references unknown metric %s", rule.Alert, ref)
		}
	}
}

func TestRunbookAnchorsExist(t *testing.T) {
	doc, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook.md"))
	require.NoError(t, err)
	for _, rule := range loadRules(t) {
		anchor := strings.TrimPrefix(rule.Annotations["runbook"], "docs/runbook.md#")
		assert.Contains(t, string(doc), "\n## "+anchor+"\n", rule.Alert)
	}
}
