// Package file implements the ticket store as a single JSON document on
// disk: counters, tickets, settings, and the reset log in one record.
// Every mutation rewrites the document through a temp-file rename, so a
// crash never leaves a half-written store behind.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/snake33madb2017/turno-barberia/internal/models"
	"github.com/snake33madb2017/turno-barberia/internal/store"
)

type document struct {
	Counters counters            `json:"counters"`
	Tickets  []models.Ticket     `json:"tickets"`
	Settings models.Settings     `json:"settings"`
	ResetLog []models.ResetEntry `json:"reset_log"`
}

type counters struct {
	LastSequence     int    `json:"last_sequence"`
	LastRolloverDate string `json:"last_rollover_date"`
}

type Store struct {
	mu   sync.Mutex
	path string
	doc  document
}

// Open loads the document at path. A missing file is initialized with
// defaults; an unreadable or corrupt file is a hard ErrStorage failure,
// never silently treated as an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.doc = document{Settings: models.DefaultSettings()}
		if err := s.persistLocked(s.doc); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", store.ErrStorage, path, err)
	}
	if err := json.Unmarshal(raw, &s.doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", store.ErrStorage, path, err)
	}
	return s, nil
}

func (s *Store) LoadAll(ctx context.Context) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Ticket, len(s.doc.Tickets))
	copy(out, s.doc.Tickets)
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ticket := range s.doc.Tickets {
		if ticket.ID == id {
			return ticket, nil
		}
	}
	return models.Ticket{}, store.ErrTicketNotFound
}

func (s *Store) Upsert(ctx context.Context, ticket models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.copyLocked()
	replaced := false
	for i := range next.Tickets {
		if next.Tickets[i].ID == ticket.ID {
			next.Tickets[i] = ticket
			replaced = true
			break
		}
	}
	if !replaced {
		next.Tickets = append(next.Tickets, ticket)
	}
	return s.commitLocked(next)
}

func (s *Store) Update(ctx context.Context, id string, fn func(models.Ticket) (models.Ticket, error)) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.copyLocked()
	for i := range next.Tickets {
		if next.Tickets[i].ID != id {
			continue
		}
		updated, err := fn(next.Tickets[i])
		if err != nil {
			return models.Ticket{}, err
		}
		updated.ID = id
		next.Tickets[i] = updated
		if err := s.commitLocked(next); err != nil {
			return models.Ticket{}, err
		}
		return updated, nil
	}
	return models.Ticket{}, store.ErrTicketNotFound
}

func (s *Store) Remove(ctx context.Context, filter store.RemoveFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.copyLocked()
	kept := next.Tickets[:0]
	removed := 0
	for _, ticket := range next.Tickets {
		if matches(ticket, filter) {
			removed++
			continue
		}
		kept = append(kept, ticket)
	}
	next.Tickets = kept

	if filter.Scope == store.ScopeAll || len(next.Tickets) == 0 {
		next.Counters.LastSequence = 0
	}
	if err := s.commitLocked(next); err != nil {
		return 0, err
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

	next := s.copyLocked()
	if next.Counters.LastRolloverDate != businessDate {
		rollDocument(&next, businessDate)
	}
	next.Counters.LastSequence++
	if err := s.commitLocked(next); err != nil {
		return 0, err
	}
	return next.Counters.LastSequence, nil
}

func (s *Store) EnsureBusinessDate(ctx context.Context, today string) (store.RolloverResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc.Counters.LastRolloverDate == today {
		return store.RolloverResult{Date: today}, nil
	}

	next := s.copyLocked()
	removed := rollDocument(&next, today)
	if err := s.commitLocked(next); err != nil {
		return store.RolloverResult{}, err
	}
	return store.RolloverResult{Rolled: true, Removed: removed, Date: today}, nil
}

func rollDocument(doc *document, today string) int {
	kept := doc.Tickets[:0]
	removed := 0
	for _, ticket := range doc.Tickets {
		if ticket.BusinessDate != today {
			removed++
			continue
		}
		kept = append(kept, ticket)
	}
	doc.Tickets = kept
	doc.Counters.LastSequence = 0
	doc.Counters.LastRolloverDate = today
	return removed
}

func (s *Store) GetSettings(ctx context.Context) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.copyLocked()
	next.Settings = settings
	return s.commitLocked(next)
}

func (s *Store) AppendResetLog(ctx context.Context, entry models.ResetEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.copyLocked()
	next.ResetLog = append(next.ResetLog, entry)
	return s.commitLocked(next)
}

func (s *Store) ListResetLog(ctx context.Context) ([]models.ResetEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ResetEntry, len(s.doc.ResetLog))
	copy(out, s.doc.ResetLog)
	return out, nil
}

// copyLocked clones the document so a failed persist leaves the in-memory
// state untouched. Callers hold s.mu.
func (s *Store) copyLocked() document {
	next := s.doc
	next.Tickets = make([]models.Ticket, len(s.doc.Tickets))
	copy(next.Tickets, s.doc.Tickets)
	next.ResetLog = make([]models.ResetEntry, len(s.doc.ResetLog))
	copy(next.ResetLog, s.doc.ResetLog)
	return next
}

// commitLocked persists the candidate document and swaps it in only after
// the write succeeded.
func (s *Store) commitLocked(next document) error {
	if err := s.persistLocked(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

func (s *Store) persistLocked(doc document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", store.ErrStorage, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir: %v", store.ErrStorage, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", store.ErrStorage, tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", store.ErrStorage, tmp, err)
	}
	return nil
}
