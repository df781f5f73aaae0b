package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/snake33madb2017/turno-barberia/internal/models"
	"github.com/snake33madb2017/turno-barberia/internal/store"
)

func TestOpenInitializesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "data.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	settings, err := s.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if settings.PauseActive || len(settings.Workdays) != 6 {
		t.Fatalf("unexpected default settings: %+v", settings)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("document not written: %v", err)
	}
}

func TestOpenCorruptFileFailsHard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	_, err := Open(path)
	if !errors.Is(err, store.ErrStorage) {
		t.Fatalf("Open error = %v, want ErrStorage", err)
	}
}

func TestRoundTripThroughReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	seq, err := s.NextSequence(ctx, "2026-08-28")
	if err != nil {
		t.Fatalf("NextSequence: %v", err)
	}
	if seq != 1 {
		t.Fatalf("sequence %d, want 1", seq)
	}

	ticket := models.Ticket{
		ID:             "t-1",
		SequenceNumber: seq,
		DisplayName:    "Ana",
		State:          models.StatePending,
		CreatedAt:      time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC),
		BusinessDate:   "2026-08-28",
	}
	if err := s.Upsert(ctx, ticket); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.AppendResetLog(ctx, models.ResetEntry{Scope: store.ScopeAll, DeletedCount: 0}); err != nil {
		t.Fatalf("AppendResetLog: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	got, err := reopened.Get(ctx, "t-1")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.DisplayName != "Ana" || got.SequenceNumber != 1 {
		t.Fatalf("unexpected ticket after reopen: %+v", got)
	}

	seq, err = reopened.NextSequence(ctx, "2026-08-28")
	if err != nil {
		t.Fatalf("NextSequence after reopen: %v", err)
	}
	if seq != 2 {
		t.Fatalf("sequence after reopen %d, want 2", seq)
	}

	log, err := reopened.ListResetLog(ctx)
	if err != nil {
		t.Fatalf("ListResetLog: %v", err)
	}
	if len(log) != 1 {
		t.Fatalf("reset log length %d, want 1", len(log))
	}
}

func TestRolloverClearsStaleTickets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := s.NextSequence(ctx, "2026-08-27"); err != nil {
		t.Fatalf("NextSequence: %v", err)
	}
	if err := s.Upsert(ctx, models.Ticket{ID: "old", State: models.StatePending, BusinessDate: "2026-08-27"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	result, err := s.EnsureBusinessDate(ctx, "2026-08-28")
	if err != nil {
		t.Fatalf("EnsureBusinessDate: %v", err)
	}
	if !result.Rolled || result.Removed != 1 {
		t.Fatalf("rollover = %+v, want rolled with 1 removed", result)
	}

	again, err := s.EnsureBusinessDate(ctx, "2026-08-28")
	if err != nil {
		t.Fatalf("EnsureBusinessDate: %v", err)
	}
	if again.Rolled {
		t.Fatalf("second rollover should be a no-op, got %+v", again)
	}

	seq, err := s.NextSequence(ctx, "2026-08-28")
	if err != nil {
		t.Fatalf("NextSequence: %v", err)
	}
	if seq != 1 {
		t.Fatalf("sequence after rollover %d, want 1", seq)
	}
}

func TestFailedUpdateLeavesDocumentUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Upsert(ctx, models.Ticket{ID: "t-1", State: models.StatePending, BusinessDate: "2026-08-28"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	boom := errors.New("boom")
	_, err = s.Update(ctx, "t-1", func(ticket models.Ticket) (models.Ticket, error) {
		ticket.State = models.StateActive
		return ticket, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update error = %v, want %v", err, boom)
	}

	got, err := s.Get(ctx, "t-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != models.StatePending {
		t.Fatalf("state = %q, want pending", got.State)
	}
}
