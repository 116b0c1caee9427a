package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AkZcH/MutexTalk/internal/audit"
	"github.com/AkZcH/MutexTalk/internal/permit"
	"github.com/AkZcH/MutexTalk/internal/shared"
	"github.com/AkZcH/MutexTalk/internal/storage"
)

// Permit is the slice of the arbiter the gate drives.
type Permit interface {
	Status() permit.Status
	ForceRelease() (holder string, released bool)
	SetEnabled(enabled bool) (previous bool)
}

// LogReader reads the audit trail.
type LogReader interface {
	ListLogs(ctx context.Context, page shared.Page) ([]storage.LogEntry, error)
}

// SemaphoreStatus is the permit portion of SystemStatus.
type SemaphoreStatus struct {
	Value          int    `json:"value"`
	Holder         string `json:"holder"`
	Available      bool   `json:"available"`
	WritingEnabled bool   `json:"writer_enabled"`
}

// ProcessStatus is the process portion of SystemStatus.
type ProcessStatus struct {
	Status    string `json:"status"`
	AdminUser string `json:"admin_user"`
}

// SystemStatus is returned by GetSystemStatus.
type SystemStatus struct {
	Timestamp string          `json:"timestamp"`
	Semaphore SemaphoreStatus `json:"semaphore"`
	System    ProcessStatus   `json:"system"`
}

// ForceReleaseResult names the dispossessed holder, if any.
type ForceReleaseResult struct {
	PreviousHolder string `json:"previous_holder"`
	Released       bool   `json:"released"`
}

// Gate runs privileged operations. Every successful call writes one
// ADMIN_ACTION audit record.
type Gate struct {
	policy Policy
	permit Permit
	logs   LogReader
	audit  audit.Recorder
	log    *slog.Logger
}

// NewGate wires the gate. logger may be nil.
func NewGate(policy Policy, p Permit, logs LogReader, recorder audit.Recorder, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{policy: policy, permit: p, logs: logs, audit: recorder, log: logger}
}

// IsPrivileged delegates to the policy.
func (g *Gate) IsPrivileged(identity string) bool {
	return g.policy != nil && g.policy.IsPrivileged(identity)
}

func (g *Gate) authorize(identity string) error {
	if !g.IsPrivileged(identity) {
		g.log.Warn("admin privilege denied", slog.String("user", identity))
		return shared.ErrNotPrivileged
	}
	return nil
}

// GetLogs returns one page of the audit trail, newest first.
func (g *Gate) GetLogs(ctx context.Context, identity string, page, limit int) ([]storage.LogEntry, error) {
	if err := g.authorize(identity); err != nil {
		return nil, err
	}
	p, err := shared.NewPage(page, limit)
	if err != nil {
		return nil, err
	}
	logs, err := g.logs.ListLogs(ctx, p)
	if err != nil {
		return nil, storage.Wrap("list logs", err)
	}
	g.audit.Record(ctx, storage.ActionAdminAction, identity,
		fmt.Sprintf("Admin accessed logs (page %d, limit %d)", p.Page, p.Limit),
		g.permit.Status().Value())
	return logs, nil
}

// GetSystemStatus reports the permit state and the caller.
func (g *Gate) GetSystemStatus(ctx context.Context, identity string) (SystemStatus, error) {
	if err := g.authorize(identity); err != nil {
		return SystemStatus{}, err
	}
	st := g.permit.Status()
	status := SystemStatus{
		Timestamp: storage.FormatTime(storage.Now()),
		Semaphore: SemaphoreStatus{
			Value:          st.Value(),
			Holder:         st.Holder,
			Available:      st.Available,
			WritingEnabled: st.Enabled,
		},
		System: ProcessStatus{Status: "running", AdminUser: identity},
	}
	g.audit.Record(ctx, storage.ActionAdminAction, identity, "Retrieved system status", st.Value())
	return status, nil
}

// ForceReleaseSemaphore clears the permit regardless of holder. Releasing a
// free permit succeeds and is still recorded.
func (g *Gate) ForceReleaseSemaphore(ctx context.Context, identity string) (ForceReleaseResult, error) {
	if err := g.authorize(identity); err != nil {
		return ForceReleaseResult{}, err
	}
	holder, released := g.permit.ForceRelease()
	content := "Admin force release requested; semaphore already free"
	if released {
		content = fmt.Sprintf("Admin forced release of semaphore from user '%s'", holder)
		g.log.Info("permit force-released", slog.String("admin", identity), slog.String("holder", holder))
	}
	g.audit.Record(ctx, storage.ActionAdminAction, identity, content, permit.ValueFree)
	return ForceReleaseResult{PreviousHolder: holder, Released: released}, nil
}

// SetWritingEnabled toggles new acquisitions. The current hold is unaffected.
func (g *Gate) SetWritingEnabled(ctx context.Context, identity string, enabled bool) (bool, error) {
	if err := g.authorize(identity); err != nil {
		return false, err
	}
	previous := g.permit.SetEnabled(enabled)
	content := "Admin disabled writing"
	if enabled {
		content = "Admin enabled writing"
	}
	if previous != enabled {
		g.log.Info("writing toggled", slog.String("admin", identity), slog.Bool("enabled", enabled))
	}
	g.audit.Record(ctx, storage.ActionAdminAction, identity, content, g.permit.Status().Value())
	return enabled, nil
}
