package command

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/AkZcH/MutexTalk/internal/audit"
	"github.com/AkZcH/MutexTalk/internal/permit"
	"github.com/AkZcH/MutexTalk/internal/shared"
	"github.com/AkZcH/MutexTalk/internal/storage"
)

// Arbiter is the permit surface the dispatcher drives.
type Arbiter interface {
	TryAcquire(identity string) error
	Release(identity string) error
	Status() permit.Status
}

// Messages is the permit-gated message service.
type Messages interface {
	Create(ctx context.Context, user, body string) (storage.Message, error)
	Update(ctx context.Context, id int64, user, body string) error
	Delete(ctx context.Context, id int64, user string) error
	List(ctx context.Context, page, limit int) ([]storage.Message, error)
}

// Admin is the privileged surface the dispatcher drives.
type Admin interface {
	IsPrivileged(identity string) bool
	GetLogs(ctx context.Context, identity string, page, limit int) ([]storage.LogEntry, error)
	SetWritingEnabled(ctx context.Context, identity string, enabled bool) (bool, error)
}

// Metrics receives dispatch outcomes.
type Metrics interface {
	ObserveCommand(kind string, code int)
	ObserveAcquire(outcome string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveCommand(string, int) {}
func (noopMetrics) ObserveAcquire(string)      {}

// Dispatcher routes commands to their component and renders uniform results.
type Dispatcher struct {
	arbiter  Arbiter
	messages Messages
	admin    Admin
	audit    audit.Recorder
	validate *validator.Validate
	metrics  Metrics
	log      *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.log = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics Metrics) Option {
	return func(d *Dispatcher) {
		if metrics != nil {
			d.metrics = metrics
		}
	}
}

// NewDispatcher wires a dispatcher.
func NewDispatcher(arbiter Arbiter, messages Messages, admin Admin, recorder audit.Recorder, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		arbiter:  arbiter,
		messages: messages,
		admin:    admin,
		audit:    recorder,
		validate: validator.New(),
		metrics:  noopMetrics{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle decodes raw, dispatches it and returns the rendered response.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) []byte {
	return d.Execute(ctx, raw).Render()
}

// Execute decodes raw and dispatches it.
func (d *Dispatcher) Execute(ctx context.Context, raw []byte) Result {
	cmd, err := Decode(raw)
	if err != nil {
		d.log.Debug("command rejected", slog.Any("error", err))
		d.metrics.ObserveCommand(KindUnknown.String(), int(shared.CodeInvalidInput))
		return invalidJSON()
	}
	return d.Dispatch(ctx, cmd)
}

// Dispatch validates cmd and invokes its component. Validation failures never
// reach a component and are never audited. Admin-gated kinds check privilege
// before anything else.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) Result {
	res := d.dispatch(ctx, cmd)
	d.metrics.ObserveCommand(cmd.Kind.String(), int(res.Code))
	if !res.OK() {
		d.log.Debug("command failed",
			slog.String("action", cmd.Kind.String()),
			slog.String("user", cmd.User),
			slog.Int("code", int(res.Code)),
			slog.String("error", res.Error))
	}
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, cmd Command) Result {
	if cmd.Kind == KindGetLogs || cmd.Kind == KindSetWritingEnabled {
		if d.admin == nil || !d.admin.IsPrivileged(cmd.User) {
			return failure(shared.ErrNotPrivileged, "Permission denied - admin privileges required")
		}
	}
	if err := validate(d.validate, cmd); err != nil {
		var vErr *validationError
		if errors.As(err, &vErr) {
			return failure(err, vErr.message)
		}
		return failure(err, "Unknown command type")
	}

	switch cmd.Kind {
	case KindAcquirePermit:
		return d.acquire(ctx, cmd)
	case KindReleasePermit:
		return d.release(ctx, cmd)
	case KindCreateMessage:
		return d.create(ctx, cmd)
	case KindUpdateMessage:
		return d.update(ctx, cmd)
	case KindDeleteMessage:
		return d.delete(ctx, cmd)
	case KindListMessages:
		return d.list(ctx, cmd)
	case KindGetStatus:
		return d.status()
	case KindGetLogs:
		return d.logs(ctx, cmd)
	case KindSetWritingEnabled:
		return d.toggle(ctx, cmd)
	}
	return failure(shared.ErrInvalidInput, "Unknown command type")
}

func (d *Dispatcher) acquire(ctx context.Context, cmd Command) Result {
	if err := d.arbiter.TryAcquire(cmd.User); err != nil {
		switch {
		case errors.Is(err, shared.ErrUnavailable):
			d.metrics.ObserveAcquire("busy")
			st := d.arbiter.Status()
			res := failure(err, "Semaphore unavailable")
			res.Data = PermitPayload{Semaphore: st.Value(), Holder: st.Holder}
			return res
		case errors.Is(err, shared.ErrWritingDisabled):
			d.metrics.ObserveAcquire("disabled")
			return failure(err, "Writer access disabled")
		default:
			d.metrics.ObserveAcquire("invalid")
			return failure(err, "Failed to acquire semaphore")
		}
	}
	d.metrics.ObserveAcquire("granted")
	d.log.Info("permit acquired", slog.String("user", cmd.User))
	d.audit.Record(ctx, storage.ActionAcquire, cmd.User, "Write permit acquired", permit.ValueHeld)
	return ok(PermitPayload{Semaphore: permit.ValueHeld, Holder: cmd.User})
}

func (d *Dispatcher) release(ctx context.Context, cmd Command) Result {
	if err := d.arbiter.Release(cmd.User); err != nil {
		if errors.Is(err, shared.ErrPermissionDenied) {
			return failure(err, "Permission denied - not semaphore holder")
		}
		return failure(err, "Failed to release semaphore")
	}
	d.log.Info("permit released", slog.String("user", cmd.User))
	d.audit.Record(ctx, storage.ActionRelease, cmd.User, "Write permit released", permit.ValueFree)
	return ok(PermitPayload{Semaphore: permit.ValueFree, Holder: ""})
}

func (d *Dispatcher) create(ctx context.Context, cmd Command) Result {
	msg, err := d.messages.Create(ctx, cmd.User, cmd.Message)
	if err != nil {
		return failure(err, messageFailure(err, "Permission denied - semaphore not held", "Failed to create message"))
	}
	return ok(CreatedPayload{ID: msg.ID, Timestamp: storage.FormatTime(msg.CreatedAt)})
}

func (d *Dispatcher) update(ctx context.Context, cmd Command) Result {
	if err := d.messages.Update(ctx, cmd.ID, cmd.User, cmd.Message); err != nil {
		return failure(err, messageFailure(err, "Permission denied - message not found or not owned", "Failed to update message"))
	}
	return ok(IDPayload{ID: cmd.ID})
}

func (d *Dispatcher) delete(ctx context.Context, cmd Command) Result {
	if err := d.messages.Delete(ctx, cmd.ID, cmd.User); err != nil {
		return failure(err, messageFailure(err, "Permission denied - message not found or not owned", "Failed to delete message"))
	}
	return ok(IDPayload{ID: cmd.ID})
}

func (d *Dispatcher) list(ctx context.Context, cmd Command) Result {
	msgs, err := d.messages.List(ctx, cmd.Page, cmd.Limit)
	if err != nil {
		return failure(err, pageFailure(err, "Failed to list messages"))
	}
	return ok(MessagesPayload{Messages: msgs})
}

func (d *Dispatcher) status() Result {
	if d.arbiter == nil {
		return failure(shared.ErrGeneral, "Failed to get semaphore status")
	}
	st := d.arbiter.Status()
	return ok(PermitPayload{Semaphore: st.Value(), Holder: st.Holder})
}

func (d *Dispatcher) logs(ctx context.Context, cmd Command) Result {
	logs, err := d.admin.GetLogs(ctx, cmd.User, cmd.Page, cmd.Limit)
	if err != nil {
		if errors.Is(err, shared.ErrPermissionDenied) {
			return failure(err, "Permission denied - admin privileges required")
		}
		return failure(err, pageFailure(err, "Failed to get logs"))
	}
	return ok(LogsPayload{Logs: logs})
}

func (d *Dispatcher) toggle(ctx context.Context, cmd Command) Result {
	enabled, err := d.admin.SetWritingEnabled(ctx, cmd.User, *cmd.Enabled)
	if err != nil {
		if errors.Is(err, shared.ErrPermissionDenied) {
			return failure(err, "Permission denied - admin privileges required")
		}
		return failure(err, "Failed to toggle writer access")
	}
	return ok(WriterPayload{WriterEnabled: enabled})
}

func messageFailure(err error, denied, fallback string) string {
	switch shared.CodeOf(err) {
	case shared.CodePermissionDenied:
		return denied
	case shared.CodeStorage:
		return "Database error"
	case shared.CodeInvalidInput:
		return "Invalid message parameters"
	}
	return fallback
}

func pageFailure(err error, fallback string) string {
	switch shared.CodeOf(err) {
	case shared.CodeInvalidInput:
		return "Invalid page or limit parameters"
	case shared.CodeStorage:
		return "Database error"
	}
	return fallback
}
