package admin

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/snake33madb2017/turno-barberia/internal/models"
	"github.com/snake33madb2017/turno-barberia/internal/store"
	"github.com/snake33madb2017/turno-barberia/internal/store/memory"
)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

func newTestGuard(t *testing.T) (*Guard, *memory.Store, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)}
	st := memory.NewStore()
	return NewGuard(st, time.Hour, clock.Now), st, clock
}

func TestLoginMigratesLegacyPlaintextCredential(t *testing.T) {
	ctx := context.Background()
	guard, st, _ := newTestGuard(t)

	session, err := guard.Login(ctx, "admin")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.Token == "" {
		t.Fatal("empty session token")
	}

	settings, err := st.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if !strings.HasPrefix(settings.AdminCredential, "$2") {
		t.Fatalf("credential not rehashed: %q", settings.AdminCredential)
	}

	// The rehashed credential must keep working.
	if _, err := guard.Login(ctx, "admin"); err != nil {
		t.Fatalf("Login after rehash: %v", err)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	ctx := context.Background()
	guard, _, _ := newTestGuard(t)

	for _, password := range []string{"", "wrong"} {
		if _, err := guard.Login(ctx, password); !errors.Is(err, store.ErrBadCredentials) {
			t.Fatalf("Login(%q) error = %v, want ErrBadCredentials", password, err)
		}
	}
}

func TestValidateExpiresSessions(t *testing.T) {
	ctx := context.Background()
	guard, _, clock := newTestGuard(t)

	session, err := guard.Login(ctx, "admin")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !guard.Validate(session.Token) {
		t.Fatal("fresh session rejected")
	}
	if guard.Validate("bogus") {
		t.Fatal("unknown token accepted")
	}

	clock.t = clock.t.Add(2 * time.Hour)
	if guard.Validate(session.Token) {
		t.Fatal("expired session accepted")
	}
}

func TestUpdateSettingsPartialMerge(t *testing.T) {
	ctx := context.Background()
	guard, st, _ := newTestGuard(t)

	pause := true
	message := "Out for lunch."
	echoed, err := guard.UpdateSettings(ctx, SettingsPatch{
		PauseActive:  &pause,
		PauseMessage: &message,
	})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if !echoed.PauseActive || echoed.PauseMessage != "Out for lunch." {
		t.Fatalf("patch not applied: %+v", echoed)
	}
	if len(echoed.Workdays) != 6 {
		t.Fatalf("untouched workdays changed: %v", echoed.Workdays)
	}
	if echoed.AdminCredential != "" {
		t.Fatal("credential leaked into echoed settings")
	}

	settings, err := st.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if settings.AdminCredential == "" {
		t.Fatal("stored credential was wiped by unrelated patch")
	}
}

func TestUpdateSettingsCoercesStringDays(t *testing.T) {
	ctx := context.Background()
	guard, _, _ := newTestGuard(t)

	var patch SettingsPatch
	payload := `{"workdays": ["1", "2", 3], "categories": [{"name": "regular", "days": ["1", 2], "windows": [{"start": 540, "end": 1215}]}]}`
	if err := json.Unmarshal([]byte(payload), &patch); err != nil {
		t.Fatalf("unmarshal patch: %v", err)
	}

	settings, err := guard.UpdateSettings(ctx, patch)
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	want := []int{1, 2, 3}
	if len(settings.Workdays) != len(want) {
		t.Fatalf("workdays = %v, want %v", settings.Workdays, want)
	}
	for i := range want {
		if settings.Workdays[i] != want[i] {
			t.Fatalf("workdays = %v, want %v", settings.Workdays, want)
		}
	}
	if len(settings.Categories) != 1 || len(settings.Categories[0].Days) != 2 {
		t.Fatalf("categories = %+v", settings.Categories)
	}
}

func TestUpdateSettingsRejectsBadValues(t *testing.T) {
	ctx := context.Background()
	guard, _, _ := newTestGuard(t)

	badDays := IntList{7}
	if _, err := guard.UpdateSettings(ctx, SettingsPatch{Workdays: &badDays}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("out-of-range day error = %v, want ErrValidation", err)
	}

	badWindow := []DayCategoryPatch{{
		Name:    "x",
		Days:    IntList{1},
		Windows: []models.Window{{Start: 1200, End: 600}},
	}}
	if _, err := guard.UpdateSettings(ctx, SettingsPatch{Categories: &badWindow}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("inverted window error = %v, want ErrValidation", err)
	}

	empty := "   "
	if _, err := guard.UpdateSettings(ctx, SettingsPatch{AdminPassword: &empty}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("empty password error = %v, want ErrValidation", err)
	}
}

func TestUpdateSettingsRotatesCredential(t *testing.T) {
	ctx := context.Background()
	guard, _, _ := newTestGuard(t)

	password := "scissors-and-combs"
	if _, err := guard.UpdateSettings(ctx, SettingsPatch{AdminPassword: &password}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	if _, err := guard.Login(ctx, "admin"); !errors.Is(err, store.ErrBadCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := guard.Login(ctx, password); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}
