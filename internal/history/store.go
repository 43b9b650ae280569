// Package history keeps an audit log of delivered notifications in a
// local sqlite file or a postgres database. The log is record-only: it is
// never consulted to suppress a send, since duplicate notifications after
// a mid-run failure are accepted behavior.
package history

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"slackbrew/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS deliveries (
		checkin_id BIGINT NOT NULL,
		kind TEXT NOT NULL,
		user_name TEXT NOT NULL,
		beer_name TEXT NOT NULL,
		sent_at TIMESTAMP NOT NULL
	)`

// Store writes delivery records through sqlx. Works against the
// "postgres" and "sqlite" drivers; the schema keeps to types both accept.
type Store struct {
	db *sqlx.DB
}

func init() {
	// sqlx does not know the modernc driver name out of the box.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open connects with the given driver and DSN and ensures the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect history db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection, ensuring the schema.
func NewStore(ctx context.Context, db *sqlx.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record appends one delivery row.
func (s *Store) Record(ctx context.Context, d domain.Delivery) error {
	query := s.db.Rebind(`
		INSERT INTO deliveries (checkin_id, kind, user_name, beer_name, sent_at)
		VALUES (?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		d.CheckinID,
		string(d.Kind),
		d.UserName,
		d.BeerName,
		d.SentAt,
	)
	return err
}

// Recent returns the most recent deliveries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.Delivery, error) {
	query := s.db.Rebind(`
		SELECT checkin_id, kind, user_name, beer_name, sent_at
		FROM deliveries
		ORDER BY sent_at DESC
		LIMIT ?`)

	var out []domain.Delivery
	if err := s.db.SelectContext(ctx, &out, query, limit); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}
