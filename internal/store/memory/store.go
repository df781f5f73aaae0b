// Package memory implements the ticket store as an in-process map guarded by
// a single mutex. It backs the tests and is the default when no durable
// backend is configured.
package memory

import (
	"context"
	"sync"

	"github.com/snake33madb2017/turno-barberia/internal/models"
	"github.com/snake33madb2017/turno-barberia/internal/store"
)

type Store struct {
	mu sync.Mutex

	tickets  map[string]models.Ticket
	order    []string
	settings models.Settings
	resetLog []models.ResetEntry

	lastSequence     int
	lastRolloverDate string
}

func NewStore() *Store {
	return &Store{
		tickets:  make(map[string]models.Ticket),
		settings: models.DefaultSettings(),
	}
}

func (s *Store) LoadAll(ctx context.Context) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return ticket, nil
}

func (s *Store) Upsert(ctx context.Context, ticket models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticket.ID]; !ok {
		s.order = append(s.order, ticket.ID)
	}
	s.tickets[ticket.ID] = ticket
	return nil
}

func (s *Store) Update(ctx context.Context, id string, fn func(models.Ticket) (models.Ticket, error)) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tickets[id]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	updated, err := fn(current)
	if err != nil {
		return models.Ticket{}, err
	}
	updated.ID = current.ID
	s.tickets[id] = updated
	return updated, nil
}

func (s *Store) Remove(ctx context.Context, filter store.RemoveFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	removed := 0
	for _, id := range s.order {
		ticket := s.tickets[id]
		if matches(ticket, filter) {
			delete(s.tickets, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept

	if filter.Scope == store.ScopeAll || len(s.tickets) == 0 {
		s.lastSequence = 0
	}
	return removed, nil
}

func matches(ticket models.Ticket, filter store.RemoveFilter) bool {
	switch filter.Scope {
	case store.ScopeAll:
		return true
	case store.ScopeToday:
		return ticket.BusinessDate == filter.Date
	default:
		return false
	}
}

func (s *Store) NextSequence(ctx context.Context, businessDate string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRolloverDate != businessDate {
		s.rollLocked(businessDate)
	}
	s.lastSequence++
	return s.lastSequence, nil
}

func (s *Store) EnsureBusinessDate(ctx context.Context, today string) (store.RolloverResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRolloverDate == today {
		return store.RolloverResult{Date: today}, nil
	}
	removed := s.rollLocked(today)
	return store.RolloverResult{Rolled: true, Removed: removed, Date: today}, nil
}

// rollLocked clears tickets from prior business dates, resets the counter,
// and advances the marker. Callers hold s.mu.
func (s *Store) rollLocked(today string) int {
	kept := s.order[:0]
	removed := 0
	for _, id := range s.order {
		if s.tickets[id].BusinessDate != today {
			delete(s.tickets, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	s.lastSequence = 0
	s.lastRolloverDate = today
	return removed
}

func (s *Store) GetSettings(ctx context.Context) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

func (s *Store) AppendResetLog(ctx context.Context, entry models.ResetEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLog = append(s.resetLog, entry)
	return nil
}

func (s *Store) ListResetLog(ctx context.Context) ([]models.ResetEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ResetEntry, len(s.resetLog))
	copy(out, s.resetLog)
	return out, nil
}

func (s *Store) snapshotLocked() []models.Ticket {
	out := make([]models.Ticket, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tickets[id])
	}
	return out
}
