// Package queue implements the turn lifecycle: issuing tickets with per-day
// sequence numbers, the pending/active/finished/canceled state machine, and
// elapsed-time accounting.
package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/snake33madb2017/turno-barberia/internal/models"
	"github.com/snake33madb2017/turno-barberia/internal/schedule"
	"github.com/snake33madb2017/turno-barberia/internal/store"

	"github.com/google/uuid"
)

const (
	msgWaiting       = "Waiting for your turn"
	msgStarted       = "Your turn has started. Get ready!"
	msgFinished      = "Your turn has finished."
	msgCanceledSelf  = "Turn canceled by the customer."
	msgCanceledAdmin = "Turn canceled by the administrator."
)

type Service struct {
	store    store.TicketStore
	rollover *Rollover
	now      func() time.Time
}

type IssueInput struct {
	DisplayName  string
	Phone        string
	RecipientTag string
}

func NewService(st store.TicketStore, rollover *Rollover, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{store: st, rollover: rollover, now: now}
}

// Issue creates a pending ticket with the next sequence number for today.
func (s *Service) Issue(ctx context.Context, input IssueInput) (models.Ticket, error) {
	name := strings.TrimSpace(input.DisplayName)
	if name == "" {
		return models.Ticket{}, fmt.Errorf("%w: display name is required", store.ErrValidation)
	}
	recipient := strings.TrimSpace(input.RecipientTag)
	if recipient == "" {
		recipient = models.RecipientSelf
	}

	if err := s.rollover.EnsureCurrent(ctx); err != nil {
		return models.Ticket{}, err
	}

	now := s.now()
	today := now.Format(DateLayout)
	seq, err := s.store.NextSequence(ctx, today)
	if err != nil {
		return models.Ticket{}, err
	}

	ticket := models.Ticket{
		ID:             uuid.NewString(),
		SequenceNumber: seq,
		DisplayName:    name,
		Phone:          strings.TrimSpace(input.Phone),
		RecipientTag:   recipient,
		State:          models.StatePending,
		StatusMessage:  msgWaiting,
		CreatedAt:      now,
		BusinessDate:   today,
	}
	if err := s.store.Upsert(ctx, ticket); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.Ticket, error) {
	if err := s.rollover.EnsureCurrent(ctx); err != nil {
		return models.Ticket{}, err
	}
	return s.store.Get(ctx, id)
}

// ListAll returns every ticket in creation order, including the phone and
// recipient fields reserved for the staff view.
func (s *Service) ListAll(ctx context.Context) ([]models.Ticket, error) {
	if err := s.rollover.EnsureCurrent(ctx); err != nil {
		return nil, err
	}
	return s.store.LoadAll(ctx)
}

// Transition applies one lifecycle event under the store's exclusion
// discipline. Of two racing transitions on the same ticket, exactly one
// observes the legal from-state; the other gets ErrInvalidState.
func (s *Service) Transition(ctx context.Context, id, event string) (models.Ticket, error) {
	if _, ok := store.NextState(event); !ok {
		return models.Ticket{}, fmt.Errorf("%w: unknown event %q", store.ErrValidation, event)
	}
	if err := s.rollover.EnsureCurrent(ctx); err != nil {
		return models.Ticket{}, err
	}

	return s.store.Update(ctx, id, func(ticket models.Ticket) (models.Ticket, error) {
		if !store.ValidTransition(event, ticket.State) {
			return models.Ticket{}, fmt.Errorf("%w: %s from %s", store.ErrInvalidState, event, ticket.State)
		}
		return s.apply(ticket, event), nil
	})
}

// CancelBySelf is the customer-initiated cancel, legal from any
// non-terminal state.
func (s *Service) CancelBySelf(ctx context.Context, id string) (models.Ticket, error) {
	return s.Transition(ctx, id, store.EventCancelBySelf)
}

func (s *Service) apply(ticket models.Ticket, event string) models.Ticket {
	now := s.now().Unix()
	switch event {
	case store.EventStart:
		ticket.State = models.StateActive
		ticket.StartedAt = now
		ticket.StatusMessage = msgStarted
	case store.EventFinish:
		if ticket.StartedAt > 0 && now > ticket.StartedAt {
			ticket.AccumulatedSeconds += now - ticket.StartedAt
		}
		ticket.State = models.StateFinished
		ticket.StartedAt = 0
		ticket.StatusMessage = msgFinished
	case store.EventCancelByAdmin, store.EventCancelBySelf:
		// Elapsed time is irrelevant once canceled; the timer is zeroed on
		// purpose, not carried over.
		ticket.State = models.StateCanceled
		ticket.StartedAt = 0
		ticket.AccumulatedSeconds = 0
		if event == store.EventCancelBySelf {
			ticket.StatusMessage = msgCanceledSelf
		} else {
			ticket.StatusMessage = msgCanceledAdmin
		}
	}
	return ticket
}

// Reset bulk-deletes tickets for the given scope and records the operation
// in the reset log.
func (s *Service) Reset(ctx context.Context, scope string) (int, error) {
	if scope != store.ScopeToday && scope != store.ScopeAll {
		return 0, fmt.Errorf("%w: unknown reset scope %q", store.ErrValidation, scope)
	}
	if err := s.rollover.EnsureCurrent(ctx); err != nil {
		return 0, err
	}

	now := s.now()
	removed, err := s.store.Remove(ctx, store.RemoveFilter{
		Scope: scope,
		Date:  now.Format(DateLayout),
	})
	if err != nil {
		return 0, err
	}

	entry := models.ResetEntry{Date: now, Scope: scope, DeletedCount: removed}
	if err := s.store.AppendResetLog(ctx, entry); err != nil {
		return 0, err
	}
	return removed, nil
}

// ResetLog returns the audit trail of bulk resets, oldest first.
func (s *Service) ResetLog(ctx context.Context) ([]models.ResetEntry, error) {
	return s.store.ListResetLog(ctx)
}

// ScheduleStatus evaluates the open/closed gate for right now.
func (s *Service) ScheduleStatus(ctx context.Context) (schedule.Status, string, error) {
	if err := s.rollover.EnsureCurrent(ctx); err != nil {
		return schedule.Status{}, "", err
	}
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return schedule.Status{}, "", err
	}
	now := s.now()
	return schedule.Evaluate(now, settings), now.Format(DateLayout), nil
}
