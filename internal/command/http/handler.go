// Package commandhttp exposes the dispatcher and the admin gate over HTTP.
package commandhttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/AkZcH/MutexTalk/internal/admin"
	"github.com/AkZcH/MutexTalk/internal/command"
	"github.com/AkZcH/MutexTalk/internal/platform/httpx"
	"github.com/AkZcH/MutexTalk/internal/shared"
)

// UserHeader carries the caller identity on REST routes.
const UserHeader = "X-User"

const maxBodyBytes = 64 << 10

const deniedAdmin = "Permission denied - admin privileges required"

type dispatcher interface {
	Dispatch(ctx context.Context, cmd command.Command) command.Result
	Execute(ctx context.Context, raw []byte) command.Result
}

type adminGate interface {
	GetSystemStatus(ctx context.Context, identity string) (admin.SystemStatus, error)
	ForceReleaseSemaphore(ctx context.Context, identity string) (admin.ForceReleaseResult, error)
}

// Handler serves the command endpoint and the REST routes.
type Handler struct {
	logger     *slog.Logger
	dispatcher dispatcher
	admin      adminGate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, d dispatcher, gate adminGate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, dispatcher: d, admin: gate}
}

// MountRoutes registers the API under r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/command", h.handleCommand)

	r.Route("/semaphore", func(r chi.Router) {
		r.Post("/acquire", h.handleAcquire)
		r.Post("/release", h.handleRelease)
		r.Get("/status", h.handleStatus)
	})

	r.Route("/messages", func(r chi.Router) {
		r.Get("/", h.handleListMessages)
		r.Post("/", h.handleCreateMessage)
		r.Put("/{id}", h.handleUpdateMessage)
		r.Delete("/{id}", h.handleDeleteMessage)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Get("/logs", h.handleLogs)
		r.Get("/status", h.handleSystemStatus)
		r.Post("/force-release", h.handleForceRelease)
		r.Post("/writer", h.handleWriter)
	})
}

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Warn("read command body", slog.Any("error", err))
		h.write(w, command.Result{Code: shared.CodeInvalidInput, Error: "Invalid JSON command"})
		return
	}
	h.write(w, h.dispatcher.Execute(r.Context(), raw))
}

func (h *Handler) handleAcquire(w http.ResponseWriter, r *http.Request) {
	cmd := command.New(command.KindAcquirePermit)
	cmd.User = user(r)
	h.dispatch(w, r, cmd)
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	cmd := command.New(command.KindReleasePermit)
	cmd.User = user(r)
	h.dispatch(w, r, cmd)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, command.New(command.KindGetStatus))
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	cmd := command.New(command.KindListMessages)
	if !h.paging(w, r, &cmd) {
		return
	}
	h.dispatch(w, r, cmd)
}

type messageBody struct {
	Message string `json:"message"`
}

func (h *Handler) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	cmd := command.New(command.KindCreateMessage)
	cmd.User = user(r)
	if !h.decodeMessage(w, r, &cmd) {
		return
	}
	h.dispatch(w, r, cmd)
}

func (h *Handler) handleUpdateMessage(w http.ResponseWriter, r *http.Request) {
	cmd := command.New(command.KindUpdateMessage)
	cmd.User = user(r)
	cmd.ID = pathID(r)
	if !h.decodeMessage(w, r, &cmd) {
		return
	}
	h.dispatch(w, r, cmd)
}

func (h *Handler) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	cmd := command.New(command.KindDeleteMessage)
	cmd.User = user(r)
	cmd.ID = pathID(r)
	h.dispatch(w, r, cmd)
}

func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	cmd := command.New(command.KindGetLogs)
	cmd.User = user(r)
	if !h.paging(w, r, &cmd) {
		return
	}
	h.dispatch(w, r, cmd)
}

type writerBody struct {
	Enabled *bool `json:"enabled"`
}

func (h *Handler) handleWriter(w http.ResponseWriter, r *http.Request) {
	cmd := command.New(command.KindSetWritingEnabled)
	cmd.User = user(r)
	var body writerBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		h.write(w, command.Result{Code: shared.CodeInvalidInput, Error: "Invalid JSON command"})
		return
	}
	cmd.Enabled = body.Enabled
	h.dispatch(w, r, cmd)
}

func (h *Handler) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.admin.GetSystemStatus(r.Context(), user(r))
	if err != nil {
		h.write(w, adminFailure(err))
		return
	}
	h.write(w, command.Result{Code: shared.CodeOK, Data: status})
}

func (h *Handler) handleForceRelease(w http.ResponseWriter, r *http.Request) {
	res, err := h.admin.ForceReleaseSemaphore(r.Context(), user(r))
	if err != nil {
		h.write(w, adminFailure(err))
		return
	}
	h.write(w, command.Result{Code: shared.CodeOK, Data: res})
}

func adminFailure(err error) command.Result {
	code := shared.CodeOf(err)
	msg := "Admin operation failed"
	if code == shared.CodePermissionDenied {
		msg = deniedAdmin
	}
	return command.Result{Code: code, Error: msg}
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, cmd command.Command) {
	h.write(w, h.dispatcher.Dispatch(r.Context(), cmd))
}

func (h *Handler) write(w http.ResponseWriter, res command.Result) {
	httpx.RawJSON(w, httpx.StatusFor(res.Code), res.Render())
}

func (h *Handler) decodeMessage(w http.ResponseWriter, r *http.Request, cmd *command.Command) bool {
	var body messageBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		h.write(w, command.Result{Code: shared.CodeInvalidInput, Error: "Invalid JSON command"})
		return false
	}
	cmd.Message = body.Message
	return true
}

// paging reads page and limit query parameters. A page below 1 becomes 1.
func (h *Handler) paging(w http.ResponseWriter, r *http.Request, cmd *command.Command) bool {
	q := r.URL.Query()
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			h.write(w, command.Result{Code: shared.CodeInvalidInput, Error: "Invalid page or limit parameters"})
			return false
		}
		cmd.Page = max(page, 1)
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			h.write(w, command.Result{Code: shared.CodeInvalidInput, Error: "Invalid page or limit parameters"})
			return false
		}
		cmd.Limit = limit
	}
	return true
}

func user(r *http.Request) string {
	return r.Header.Get(UserHeader)
}

// pathID returns 0 for a malformed id so validation rejects it.
func pathID(r *http.Request) int64 {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
