// Package command decodes structured requests, validates them and routes them
// to the permit arbiter, the message service or the admin gate.
package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/AkZcH/MutexTalk/internal/shared"
)

// Kind enumerates the operations a Command can request.
type Kind int

const (
	KindUnknown Kind = iota
	KindAcquirePermit
	KindReleasePermit
	KindCreateMessage
	KindUpdateMessage
	KindDeleteMessage
	KindListMessages
	KindGetStatus
	KindGetLogs
	KindSetWritingEnabled
)

var actionNames = map[Kind]string{
	KindAcquirePermit:     "TRY_ACQUIRE",
	KindReleasePermit:     "RELEASE",
	KindCreateMessage:     "CREATE",
	KindUpdateMessage:     "UPDATE",
	KindDeleteMessage:     "DELETE",
	KindListMessages:      "LIST",
	KindGetStatus:         "STATUS",
	KindGetLogs:           "LOGS",
	KindSetWritingEnabled: "TOGGLE",
}

var actionKinds = func() map[string]Kind {
	kinds := make(map[string]Kind, len(actionNames))
	for kind, name := range actionNames {
		kinds[name] = kind
	}
	return kinds
}()

// String returns the wire action name.
func (k Kind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseKind maps a wire action name to its Kind.
func ParseKind(action string) (Kind, bool) {
	kind, ok := actionKinds[action]
	return kind, ok
}

// Command is one decoded request. Enabled is nil when the request omitted it.
type Command struct {
	Kind    Kind
	User    string
	Message string
	ID      int64
	Page    int
	Limit   int
	Enabled *bool
}

// New returns a Command of kind with the default page and limit.
func New(kind Kind) Command {
	return Command{Kind: kind, Page: shared.DefaultPage, Limit: shared.DefaultLimit}
}

// Decode parses a JSON request. Unknown fields and fields of the wrong type are
// ignored; a missing or unknown action is invalid. A page below 1 becomes 1.
func Decode(raw []byte) (Command, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Command{}, fmt.Errorf("%w: malformed command", shared.ErrInvalidInput)
	}

	var action string
	if !decodeField(fields, "action", &action) {
		return Command{}, fmt.Errorf("%w: missing action", shared.ErrInvalidInput)
	}
	kind, ok := ParseKind(action)
	if !ok {
		return Command{}, fmt.Errorf("%w: unknown action %q", shared.ErrInvalidInput, action)
	}

	cmd := New(kind)
	decodeField(fields, "user", &cmd.User)
	decodeField(fields, "message", &cmd.Message)

	if n, ok, err := decodeInt(fields, "id"); err != nil {
		return Command{}, err
	} else if ok {
		cmd.ID = n
	}
	if n, ok, err := decodeInt(fields, "page"); err != nil {
		return Command{}, err
	} else if ok {
		cmd.Page = int(max(n, 1))
	}
	if n, ok, err := decodeInt(fields, "limit"); err != nil {
		return Command{}, err
	} else if ok {
		cmd.Limit = int(max(min(n, math.MaxInt32), math.MinInt32))
	}
	var enabled bool
	if decodeField(fields, "enabled", &enabled) {
		cmd.Enabled = &enabled
	}
	return cmd, nil
}

// decodeField reports whether key is present and decodes into dst.
func decodeField(fields map[string]json.RawMessage, key string, dst any) bool {
	raw, ok := fields[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dst) == nil && string(raw) != "null"
}

// decodeInt reads an integral JSON number. ok is false when the key is absent,
// null or not a number. Fractional or out-of-range numbers are invalid input.
func decodeInt(fields map[string]json.RawMessage, key string) (n int64, ok bool, err error) {
	raw := bytes.TrimSpace(fields[key])
	if len(raw) == 0 || raw[0] == '"' {
		return 0, false, nil
	}
	var num json.Number
	if !decodeField(fields, key, &num) {
		return 0, false, nil
	}
	if n, err := num.Int64(); err == nil {
		return n, true, nil
	}
	f, err := num.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, true, fmt.Errorf("%w: %s must be an integer", shared.ErrInvalidInput, key)
	}
	return int64(f), true, nil
}
