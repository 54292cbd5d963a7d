package bookings

import (
	"context"
	"database/sql"
	"time"

	"outdial/internal/suppression"
)

// PostgresStore stores bookings in one table keyed by the normalized
// address, which makes the dedup-on-address check a plain conflict clause.
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS bookings (
  normalized_address TEXT PRIMARY KEY,
  first_name         TEXT NOT NULL DEFAULT '',
  last_name          TEXT NOT NULL DEFAULT '',
  address            TEXT NOT NULL DEFAULT '',
  phone              TEXT NOT NULL DEFAULT '',
  transcript         TEXT NOT NULL DEFAULT '',
  created_at         TIMESTAMPTZ NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, q)
	return err
}

func (s *PostgresStore) Add(ctx context.Context, b Booking) (bool, error) {
	n := suppression.NormalizeAddress(b.Address)
	if n == "" {
		return false, nil
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.clock().UTC()
	}
	const q = `
INSERT INTO bookings (normalized_address, first_name, last_name, address, phone, transcript, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (normalized_address) DO NOTHING
`
	res, err := s.db.ExecContext(ctx, q, n, b.FirstName, b.LastName, b.Address, b.Phone, b.Transcript, b.CreatedAt)
	if err != nil {
		return false, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return inserted == 1, nil
}

func (s *PostgresStore) Addresses(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT address FROM bookings ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) List(ctx context.Context) ([]Booking, error) {
	const q = `
SELECT first_name, last_name, address, phone, transcript, created_at
FROM bookings
ORDER BY created_at
`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.FirstName, &b.LastName, &b.Address, &b.Phone, &b.Transcript, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
