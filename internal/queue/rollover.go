package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/snake33madb2017/turno-barberia/internal/store"
)

// DateLayout is the business-date format used for numbering and rollover.
const DateLayout = "2006-01-02"

// Rollover guarantees the ticket set and numbering reset exactly once per
// calendar-date change. It is called on every request, so the common path
// is a single string comparison; only a date change reaches the store.
type Rollover struct {
	store store.TicketStore
	now   func() time.Time

	mu          sync.Mutex
	lastChecked string
}

func NewRollover(st store.TicketStore, now func() time.Time) *Rollover {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Rollover{store: st, now: now}
}

// EnsureCurrent is idempotent: repeated calls on the same date after the
// first are no-ops. The store performs the actual clear-and-reset in the
// same critical section as sequence assignment.
func (r *Rollover) EnsureCurrent(ctx context.Context) error {
	today := r.now().Format(DateLayout)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastChecked == today {
		return nil
	}

	result, err := r.store.EnsureBusinessDate(ctx, today)
	if err != nil {
		return err
	}
	if result.Rolled {
		log.Printf("daily rollover executed date=%s removed=%d", result.Date, result.Removed)
	}
	r.lastChecked = today
	return nil
}
