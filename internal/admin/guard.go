// Package admin validates the shared administrative credential and mediates
// settings mutation. Credentials are stored as bcrypt hashes; a legacy
// plaintext credential is accepted once and rehashed in place.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/snake33madb2017/turno-barberia/internal/models"
	"github.com/snake33madb2017/turno-barberia/internal/store"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const defaultSessionTTL = 12 * time.Hour

type Guard struct {
	store store.TicketStore
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]time.Time
}

type Session struct {
	Token     string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewGuard(st store.TicketStore, ttl time.Duration, now func() time.Time) *Guard {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Guard{
		store:    st,
		ttl:      ttl,
		now:      now,
		sessions: make(map[string]time.Time),
	}
}

// Login compares the password against the stored credential and issues a
// session token. A plaintext credential left over from first boot is
// upgraded to a bcrypt hash on the first successful login.
func (g *Guard) Login(ctx context.Context, password string) (Session, error) {
	if password == "" {
		return Session{}, store.ErrBadCredentials
	}

	settings, err := g.store.GetSettings(ctx)
	if err != nil {
		return Session{}, err
	}

	credential := settings.AdminCredential
	if isBcryptHash(credential) {
		if err := bcrypt.CompareHashAndPassword([]byte(credential), []byte(password)); err != nil {
			return Session{}, store.ErrBadCredentials
		}
	} else {
		if credential == "" || credential != password {
			return Session{}, store.ErrBadCredentials
		}
		if err := g.rehash(ctx, settings, password); err != nil {
			return Session{}, err
		}
	}

	now := g.now()
	session := Session{Token: uuid.NewString(), ExpiresAt: now.Add(g.ttl)}

	g.mu.Lock()
	g.pruneLocked(now)
	g.sessions[session.Token] = session.ExpiresAt
	g.mu.Unlock()

	return session, nil
}

// Validate reports whether the token belongs to a live session.
func (g *Guard) Validate(token string) bool {
	if token == "" {
		return false
	}
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()
	expiry, ok := g.sessions[token]
	if !ok {
		return false
	}
	if !now.Before(expiry) {
		delete(g.sessions, token)
		return false
	}
	return true
}

func (g *Guard) rehash(ctx context.Context, settings models.Settings, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	settings.AdminCredential = string(hash)
	return g.store.SaveSettings(ctx, settings)
}

func isBcryptHash(value string) bool {
	return strings.HasPrefix(value, "$2")
}

func (g *Guard) pruneLocked(now time.Time) {
	for token, expiry := range g.sessions {
		if !now.Before(expiry) {
			delete(g.sessions, token)
		}
	}
}

// Settings returns the current configuration with the credential withheld.
func (g *Guard) Settings(ctx context.Context) (models.Settings, error) {
	settings, err := g.store.GetSettings(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	return settings.WithheldCredential(), nil
}

// IntList decodes a JSON array whose elements may arrive as numbers or as
// strings (HTML checkbox values come through as strings).
type IntList []int

func (l *IntList) UnmarshalJSON(data []byte) error {
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]int, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case float64:
			out = append(out, int(v))
		case string:
			value, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("not an integer: %q", v)
			}
			out = append(out, value)
		default:
			return fmt.Errorf("not an integer: %v", item)
		}
	}
	*l = out
	return nil
}

type DayCategoryPatch struct {
	Name    string          `json:"name"`
	Days    IntList         `json:"days"`
	Windows []models.Window `json:"windows"`
}

// SettingsPatch carries a partial settings mutation; nil fields are left
// untouched.
type SettingsPatch struct {
	Workdays          *IntList            `json:"workdays"`
	Categories        *[]DayCategoryPatch `json:"categories"`
	PauseActive       *bool               `json:"pause_active"`
	PauseMessage      *string             `json:"pause_message"`
	AdminPassword     *string             `json:"admin_password"`
	NotifyCredentials map[string]string   `json:"notify_credentials"`
}

// UpdateSettings merges the patch into the stored settings. A new admin
// password is hashed before it is persisted; the returned echo never
// carries the credential.
func (g *Guard) UpdateSettings(ctx context.Context, patch SettingsPatch) (models.Settings, error) {
	settings, err := g.store.GetSettings(ctx)
	if err != nil {
		return models.Settings{}, err
	}

	if patch.Workdays != nil {
		days, err := validDays(*patch.Workdays)
		if err != nil {
			return models.Settings{}, err
		}
		settings.Workdays = days
	}
	if patch.Categories != nil {
		categories, err := validCategories(*patch.Categories)
		if err != nil {
			return models.Settings{}, err
		}
		settings.Categories = categories
	}
	if patch.PauseActive != nil {
		settings.PauseActive = *patch.PauseActive
	}
	if patch.PauseMessage != nil {
		settings.PauseMessage = strings.TrimSpace(*patch.PauseMessage)
	}
	if patch.NotifyCredentials != nil {
		// Opaque pass-through: stored and echoed back to the notification
		// wrapper, never interpreted here.
		settings.NotifyCredentials = patch.NotifyCredentials
	}
	if patch.AdminPassword != nil {
		password := strings.TrimSpace(*patch.AdminPassword)
		if password == "" {
			return models.Settings{}, fmt.Errorf("%w: admin password must not be empty", store.ErrValidation)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return models.Settings{}, err
		}
		settings.AdminCredential = string(hash)
	}

	if err := g.store.SaveSettings(ctx, settings); err != nil {
		return models.Settings{}, err
	}
	return settings.WithheldCredential(), nil
}

func validDays(days IntList) ([]int, error) {
	out := make([]int, 0, len(days))
	for _, day := range days {
		if day < 0 || day > 6 {
			return nil, fmt.Errorf("%w: weekday %d out of range", store.ErrValidation, day)
		}
		out = append(out, day)
	}
	return out, nil
}

func validCategories(patches []DayCategoryPatch) ([]models.DayCategory, error) {
	out := make([]models.DayCategory, 0, len(patches))
	for _, patch := range patches {
		days, err := validDays(patch.Days)
		if err != nil {
			return nil, err
		}
		for _, window := range patch.Windows {
			if window.Start < 0 || window.End >= 24*60 || window.Start > window.End {
				return nil, fmt.Errorf("%w: window %d-%d out of range", store.ErrValidation, window.Start, window.End)
			}
		}
		out = append(out, models.DayCategory{
			Name:    strings.TrimSpace(patch.Name),
			Days:    days,
			Windows: patch.Windows,
		})
	}
	return out, nil
}
