package command

import (
	"encoding/json"

	"github.com/AkZcH/MutexTalk/internal/shared"
)

// Wire status strings.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

const invalidJSONMessage = "Invalid JSON command"

// Result is the outcome of one command.
type Result struct {
	Code  shared.Code
	Error string
	Data  any
}

// Response is the wire form of a Result.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// OK reports whether the command succeeded.
func (r Result) OK() bool {
	return r.Code == shared.CodeOK
}

// Response converts the result to its wire form.
func (r Result) Response() Response {
	if r.OK() {
		return Response{Status: StatusOK, Data: r.Data}
	}
	msg := r.Error
	if msg == "" {
		msg = "Unknown error"
	}
	return Response{Status: StatusError, Data: r.Data, Error: msg}
}

// Render encodes the wire form.
func (r Result) Render() []byte {
	raw, err := json.Marshal(r.Response())
	if err != nil {
		return []byte(`{"status":"ERROR","error":"Unknown error"}`)
	}
	return raw
}

func ok(data any) Result {
	return Result{Code: shared.CodeOK, Data: data}
}

func failure(err error, message string) Result {
	return Result{Code: shared.CodeOf(err), Error: message}
}

func invalidJSON() Result {
	return Result{Code: shared.CodeInvalidInput, Error: invalidJSONMessage}
}

// PermitPayload is returned by acquire, release and status.
type PermitPayload struct {
	Semaphore int    `json:"semaphore"`
	Holder    string `json:"holder"`
}

// CreatedPayload is returned by a successful create.
type CreatedPayload struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
}

// IDPayload is returned by update and delete.
type IDPayload struct {
	ID int64 `json:"id"`
}

// MessagesPayload wraps a message listing.
type MessagesPayload struct {
	Messages any `json:"messages"`
}

// LogsPayload wraps a log listing.
type LogsPayload struct {
	Logs any `json:"logs"`
}

// WriterPayload is returned by a toggle.
type WriterPayload struct {
	WriterEnabled bool `json:"writer_enabled"`
}
