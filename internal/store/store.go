package store

import (
	"context"

	"github.com/snake33madb2017/turno-barberia/internal/models"
)

// Reset scopes accepted by Remove.
const (
	ScopeToday = "today"
	ScopeAll   = "all"
)

type RemoveFilter struct {
	// Scope selects the tickets to delete: ScopeAll removes everything,
	// ScopeToday removes tickets whose BusinessDate equals Date.
	Scope string
	Date  string
}

type RolloverResult struct {
	Rolled  bool
	Removed int
	Date    string
}

// TicketStore holds the full ticket record set, the numbering counter, the
// rollover marker, settings, and the reset log. Implementations must make
// every mutation linearizable with respect to the others: two concurrent
// Update calls, or an Update racing NextSequence or EnsureBusinessDate, must
// never observe a stale snapshot of each other's effect.
type TicketStore interface {
	// LoadAll returns every ticket in creation order.
	LoadAll(ctx context.Context) ([]models.Ticket, error)
	// Get returns ErrTicketNotFound for an unknown id.
	Get(ctx context.Context, id string) (models.Ticket, error)
	// Upsert inserts or replaces a record by id; durable on return.
	Upsert(ctx context.Context, ticket models.Ticket) error
	// Update applies fn to the current record under the store's exclusion
	// discipline and persists the result. If fn returns an error the store
	// is left unchanged and the error is passed through.
	Update(ctx context.Context, id string, fn func(models.Ticket) (models.Ticket, error)) (models.Ticket, error)
	// Remove bulk-deletes matching tickets and returns the count removed.
	// A removal that empties the store also resets the sequence counter.
	Remove(ctx context.Context, filter RemoveFilter) (int, error)
	// NextSequence atomically returns and advances the counter for the
	// given business date, starting at 1. A date change observed here rolls
	// the store over first, so numbering can never leak across dates.
	NextSequence(ctx context.Context, businessDate string) (int, error)
	// EnsureBusinessDate compares the persisted rollover marker to today
	// and, when they differ, clears stale tickets, resets the counter, and
	// advances the marker, all in one critical section. Idempotent.
	EnsureBusinessDate(ctx context.Context, today string) (RolloverResult, error)

	GetSettings(ctx context.Context) (models.Settings, error)
	SaveSettings(ctx context.Context, settings models.Settings) error

	AppendResetLog(ctx context.Context, entry models.ResetEntry) error
	ListResetLog(ctx context.Context) ([]models.ResetEntry, error)
}
