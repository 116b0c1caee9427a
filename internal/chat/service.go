// Package chat implements the permit-gated message operations.
package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AkZcH/MutexTalk/internal/audit"
	"github.com/AkZcH/MutexTalk/internal/permit"
	"github.com/AkZcH/MutexTalk/internal/shared"
	"github.com/AkZcH/MutexTalk/internal/storage"
)

// Messages is the message half of storage.Store.
type Messages interface {
	CreateMessage(ctx context.Context, user, body string) (storage.Message, error)
	UpdateMessage(ctx context.Context, id int64, user, body string) error
	DeleteMessage(ctx context.Context, id int64, user string) error
	ListMessages(ctx context.Context, page shared.Page) ([]storage.Message, error)
}

// Ownership confirms the caller holds the permit.
type Ownership interface {
	Validate(identity string) error
}

// Service runs message operations. Mutations require the caller to hold the
// permit; the check and the write are not atomic with respect to the permit.
type Service struct {
	gate   Ownership
	store  Messages
	permit permit.StatusReader
	audit  audit.Recorder
	log    *slog.Logger
}

// NewService wires the service. logger may be nil.
func NewService(gate Ownership, store Messages, status permit.StatusReader, recorder audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gate: gate, store: store, permit: status, audit: recorder, log: logger}
}

// Create appends a message authored by user.
func (s *Service) Create(ctx context.Context, user, body string) (storage.Message, error) {
	if err := s.gate.Validate(user); err != nil {
		return storage.Message{}, err
	}
	msg, err := s.store.CreateMessage(ctx, user, body)
	if err != nil {
		s.log.Error("create message failed", slog.String("user", user), slog.Any("error", err))
		return storage.Message{}, storage.Wrap("create message", err)
	}
	s.audit.Record(ctx, storage.ActionCreate, user, body, s.permitValue())
	return msg, nil
}

// Update rewrites a message the caller authored.
func (s *Service) Update(ctx context.Context, id int64, user, body string) error {
	if err := s.gate.Validate(user); err != nil {
		return err
	}
	if err := s.store.UpdateMessage(ctx, id, user, body); err != nil {
		return storage.Wrap("update message", err)
	}
	s.audit.Record(ctx, storage.ActionUpdate, user, fmt.Sprintf("Updated message ID %d", id), s.permitValue())
	return nil
}

// Delete removes a message the caller authored.
func (s *Service) Delete(ctx context.Context, id int64, user string) error {
	if err := s.gate.Validate(user); err != nil {
		return err
	}
	if err := s.store.DeleteMessage(ctx, id, user); err != nil {
		return storage.Wrap("delete message", err)
	}
	s.audit.Record(ctx, storage.ActionDelete, user, fmt.Sprintf("Deleted message ID %d", id), s.permitValue())
	return nil
}

// List returns one page of messages, newest first. Reads need no permit.
func (s *Service) List(ctx context.Context, page, limit int) ([]storage.Message, error) {
	p, err := shared.NewPage(page, limit)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, p)
	if err != nil {
		return nil, storage.Wrap("list messages", err)
	}
	s.audit.Record(ctx, storage.ActionRead, "", fmt.Sprintf("Listed messages (page %d, limit %d)", p.Page, p.Limit), s.permitValue())
	return msgs, nil
}

func (s *Service) permitValue() int {
	if s.permit == nil {
		return permit.ValueFree
	}
	return s.permit.Status().Value()
}
