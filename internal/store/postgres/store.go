// Package postgres backs the ticket store with PostgreSQL. The sequence
// counter and the rollover marker live in a single queue_state row that
// every numbering or rollover transaction locks first, which serializes
// those operations the same way the in-process stores do with a mutex.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/snake33madb2017/turno-barberia/internal/models"
	"github.com/snake33madb2017/turno-barberia/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the tables and seeds the singleton rows on first
// boot. Safe to call on every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tickets (
			id TEXT PRIMARY KEY,
			sequence_number INT NOT NULL,
			display_name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			recipient_tag TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			status_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			started_at BIGINT NOT NULL DEFAULT 0,
			accumulated_seconds BIGINT NOT NULL DEFAULT 0,
			business_date TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS queue_state (
			id INT PRIMARY KEY CHECK (id = 1),
			last_sequence INT NOT NULL DEFAULT 0,
			last_rollover_date TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			id INT PRIMARY KEY CHECK (id = 1),
			payload JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reset_log (
			entry_id BIGSERIAL PRIMARY KEY,
			logged_at TIMESTAMPTZ NOT NULL,
			scope TEXT NOT NULL,
			deleted_count INT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return storageErr(err)
		}
	}

	if _, err := s.pool.Exec(ctx, `
		INSERT INTO queue_state (id, last_sequence, last_rollover_date)
		VALUES (1, 0, '')
		ON CONFLICT (id) DO NOTHING
	`); err != nil {
		return storageErr(err)
	}

	payload, err := json.Marshal(models.DefaultSettings())
	if err != nil {
		return storageErr(err)
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO settings (id, payload)
		VALUES (1, $1)
		ON CONFLICT (id) DO NOTHING
	`, payload); err != nil {
		return storageErr(err)
	}
	return nil
}

const ticketColumns = `id, sequence_number, display_name, phone, recipient_tag, state, status_message, created_at, started_at, accumulated_seconds, business_date`

func (s *Store) LoadAll(ctx context.Context) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		ORDER BY created_at ASC, sequence_number ASC
	`)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return tickets, nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Ticket, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE id = $1
	`, id)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, storageErr(err)
	}
	return ticket, nil
}

func (s *Store) Upsert(ctx context.Context, ticket models.Ticket) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			sequence_number = EXCLUDED.sequence_number,
			display_name = EXCLUDED.display_name,
			phone = EXCLUDED.phone,
			recipient_tag = EXCLUDED.recipient_tag,
			state = EXCLUDED.state,
			status_message = EXCLUDED.status_message,
			created_at = EXCLUDED.created_at,
			started_at = EXCLUDED.started_at,
			accumulated_seconds = EXCLUDED.accumulated_seconds,
			business_date = EXCLUDED.business_date
	`, ticket.ID, ticket.SequenceNumber, ticket.DisplayName, ticket.Phone, ticket.RecipientTag,
		ticket.State, ticket.StatusMessage, ticket.CreatedAt, ticket.StartedAt, ticket.AccumulatedSeconds, ticket.BusinessDate)
	if err != nil {
		return storageErr(err)
	}
	return nil
}

// Update locks the row, applies fn, and persists the result in one
// transaction. An error from fn aborts the transaction and passes through
// untouched.
func (s *Store) Update(ctx context.Context, id string, fn func(models.Ticket) (models.Ticket, error)) (models.Ticket, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, storageErr(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE id = $1
		FOR UPDATE
	`, id)
	current, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrTicketNotFound
			return models.Ticket{}, err
		}
		return models.Ticket{}, storageErr(err)
	}

	next, err := fn(current)
	if err != nil {
		return models.Ticket{}, err
	}
	next.ID = current.ID

	if _, err = tx.Exec(ctx, `
		UPDATE tickets
		SET sequence_number = $2,
			display_name = $3,
			phone = $4,
			recipient_tag = $5,
			state = $6,
			status_message = $7,
			created_at = $8,
			started_at = $9,
			accumulated_seconds = $10,
			business_date = $11
		WHERE id = $1
	`, next.ID, next.SequenceNumber, next.DisplayName, next.Phone, next.RecipientTag,
		next.State, next.StatusMessage, next.CreatedAt, next.StartedAt, next.AccumulatedSeconds, next.BusinessDate); err != nil {
		return models.Ticket{}, storageErr(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, storageErr(err)
	}
	return next, nil
}

func (s *Store) Remove(ctx context.Context, filter store.RemoveFilter) (int, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, storageErr(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = lockState(ctx, tx); err != nil {
		return 0, err
	}

	var removed int64
	switch filter.Scope {
	case store.ScopeAll:
		tag, execErr := tx.Exec(ctx, `DELETE FROM tickets`)
		if execErr != nil {
			err = storageErr(execErr)
			return 0, err
		}
		removed = tag.RowsAffected()
	case store.ScopeToday:
		tag, execErr := tx.Exec(ctx, `DELETE FROM tickets WHERE business_date = $1`, filter.Date)
		if execErr != nil {
			err = storageErr(execErr)
			return 0, err
		}
		removed = tag.RowsAffected()
	default:
		err = fmt.Errorf("%w: unknown reset scope %q", store.ErrValidation, filter.Scope)
		return 0, err
	}

	var remaining int
	if err = tx.QueryRow(ctx, `SELECT COUNT(1) FROM tickets`).Scan(&remaining); err != nil {
		err = storageErr(err)
		return 0, err
	}
	if remaining == 0 {
		if _, err = tx.Exec(ctx, `UPDATE queue_state SET last_sequence = 0 WHERE id = 1`); err != nil {
			err = storageErr(err)
			return 0, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, storageErr(err)
	}
	return int(removed), nil
}

func (s *Store) NextSequence(ctx context.Context, businessDate string) (int, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, storageErr(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// The marker is re-checked under the row lock so a ticket issued right
	// at midnight can never carry yesterday's numbering.
	if _, err = rollTx(ctx, tx, businessDate); err != nil {
		return 0, err
	}

	var next int
	if err = tx.QueryRow(ctx, `
		UPDATE queue_state
		SET last_sequence = last_sequence + 1
		WHERE id = 1
		RETURNING last_sequence
	`).Scan(&next); err != nil {
		err = storageErr(err)
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, storageErr(err)
	}
	return next, nil
}

func (s *Store) EnsureBusinessDate(ctx context.Context, today string) (store.RolloverResult, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.RolloverResult{}, storageErr(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	result, err := rollTx(ctx, tx, today)
	if err != nil {
		return store.RolloverResult{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return store.RolloverResult{}, storageErr(err)
	}
	return result, nil
}

type queueState struct {
	LastSequence     int
	LastRolloverDate string
}

func lockState(ctx context.Context, tx pgx.Tx) (queueState, error) {
	var state queueState
	err := tx.QueryRow(ctx, `
		SELECT last_sequence, last_rollover_date
		FROM queue_state
		WHERE id = 1
		FOR UPDATE
	`).Scan(&state.LastSequence, &state.LastRolloverDate)
	if err != nil {
		return queueState{}, storageErr(err)
	}
	return state, nil
}

func rollTx(ctx context.Context, tx pgx.Tx, today string) (store.RolloverResult, error) {
	state, err := lockState(ctx, tx)
	if err != nil {
		return store.RolloverResult{}, err
	}
	if state.LastRolloverDate == today {
		return store.RolloverResult{Rolled: false, Date: today}, nil
	}

	tag, err := tx.Exec(ctx, `DELETE FROM tickets WHERE business_date <> $1`, today)
	if err != nil {
		return store.RolloverResult{}, storageErr(err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE queue_state
		SET last_sequence = 0, last_rollover_date = $1
		WHERE id = 1
	`, today); err != nil {
		return store.RolloverResult{}, storageErr(err)
	}
	return store.RolloverResult{Rolled: true, Removed: int(tag.RowsAffected()), Date: today}, nil
}

func (s *Store) GetSettings(ctx context.Context) (models.Settings, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM settings WHERE id = 1`).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DefaultSettings(), nil
		}
		return models.Settings{}, storageErr(err)
	}

	var settings models.Settings
	if err := json.Unmarshal(payload, &settings); err != nil {
		return models.Settings{}, storageErr(err)
	}
	return settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return storageErr(err)
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO settings (id, payload)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload
	`, payload); err != nil {
		return storageErr(err)
	}
	return nil
}

func (s *Store) AppendResetLog(ctx context.Context, entry models.ResetEntry) error {
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO reset_log (logged_at, scope, deleted_count)
		VALUES ($1, $2, $3)
	`, entry.Date, entry.Scope, entry.DeletedCount); err != nil {
		return storageErr(err)
	}
	return nil
}

func (s *Store) ListResetLog(ctx context.Context) ([]models.ResetEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT logged_at, scope, deleted_count
		FROM reset_log
		ORDER BY entry_id ASC
	`)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var entries []models.ResetEntry
	for rows.Next() {
		var entry models.ResetEntry
		if err := rows.Scan(&entry.Date, &entry.Scope, &entry.DeletedCount); err != nil {
			return nil, storageErr(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return entries, nil
}

func scanTicket(row pgx.Row) (models.Ticket, error) {
	var ticket models.Ticket
	err := row.Scan(&ticket.ID, &ticket.SequenceNumber, &ticket.DisplayName, &ticket.Phone, &ticket.RecipientTag,
		&ticket.State, &ticket.StatusMessage, &ticket.CreatedAt, &ticket.StartedAt, &ticket.AccumulatedSeconds, &ticket.BusinessDate)
	if err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", store.ErrStorage, err)
}
