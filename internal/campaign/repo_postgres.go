package campaign

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"outdial/internal/schedule"
	"outdial/pkg/utils"
)

// PostgresStore persists configuration and run state as small JSON
// documents:
// - campaign_configs (campaign_id TEXT PK, doc JSONB)
// - dialer_state (id INT PK = 1, doc JSONB)
//
// The single state row is locked FOR UPDATE inside every read-modify-write,
// which makes the daily rollover an exactly-once compare-and-reset even
// with multiple processes pointed at the same database.
type PostgresStore struct {
	db       *sql.DB
	clock    func() time.Time
	location *time.Location
}

func NewPostgresStore(db *sql.DB, loc *time.Location) *PostgresStore {
	if loc == nil {
		loc = time.UTC
	}
	return &PostgresStore{db: db, clock: time.Now, location: loc}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS campaign_configs (
  campaign_id TEXT PRIMARY KEY,
  doc         JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS dialer_state (
  id  INT PRIMARY KEY CHECK (id = 1),
  doc JSONB NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, q)
	return err
}

func (s *PostgresStore) today() string {
	return schedule.DateString(s.clock().In(s.location))
}

func (s *PostgresStore) GetConfig(ctx context.Context, id string) (Config, error) {
	if !IsValidID(id) {
		return Config{}, ErrUnknownCampaign
	}
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM campaign_configs WHERE campaign_id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Config{}.WithDefaults(), nil
	}
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg.WithDefaults(), nil
}

func (s *PostgresStore) UpdateConfig(ctx context.Context, id string, fn func(*Config)) (Config, error) {
	if !IsValidID(id) {
		return Config{}, ErrUnknownCampaign
	}
	var out Config
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var raw []byte
		var cfg Config
		err := tx.QueryRowContext(ctx, `SELECT doc FROM campaign_configs WHERE campaign_id = $1 FOR UPDATE`, id).Scan(&raw)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// first write for this slot
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(raw, &cfg); err != nil {
				return err
			}
		}
		fn(&cfg)
		doc, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		const upsert = `
INSERT INTO campaign_configs (campaign_id, doc)
VALUES ($1, $2)
ON CONFLICT (campaign_id) DO UPDATE SET doc = EXCLUDED.doc
`
		if _, err := tx.ExecContext(ctx, upsert, id, doc); err != nil {
			return err
		}
		out = cfg.WithDefaults()
		return nil
	})
	return out, err
}

func (s *PostgresStore) GetState(ctx context.Context) (State, error) {
	var out State
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		st, changed, err := s.loadStateForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		if changed {
			if err := saveState(ctx, tx, st); err != nil {
				return err
			}
		}
		out = st
		return nil
	})
	return out, err
}

func (s *PostgresStore) UpdateState(ctx context.Context, fn func(*State)) (State, error) {
	var out State
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		st, _, err := s.loadStateForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		fn(&st)
		st.normalize()
		if err := saveState(ctx, tx, st); err != nil {
			return err
		}
		out = st
		return nil
	})
	return out, err
}

// loadStateForUpdate reads and locks the state row, applying normalization
// and rollover. The bool reports whether rollover changed the document.
func (s *PostgresStore) loadStateForUpdate(ctx context.Context, tx *sql.Tx) (State, bool, error) {
	var raw []byte
	st := NewState()
	err := tx.QueryRowContext(ctx, `SELECT doc FROM dialer_state WHERE id = 1 FOR UPDATE`).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// first boot: seed the row so FOR UPDATE has something to lock
		if err := saveState(ctx, tx, st); err != nil {
			return State{}, false, err
		}
	case err != nil:
		return State{}, false, err
	default:
		if err := json.Unmarshal(raw, &st); err != nil {
			return State{}, false, err
		}
		st.normalize()
	}
	changed := st.rollover(s.today())
	return st, changed, nil
}

func saveState(ctx context.Context, tx *sql.Tx, st State) error {
	doc, err := json.Marshal(st)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO dialer_state (id, doc)
VALUES (1, $1)
ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
`
	_, err = tx.ExecContext(ctx, q, doc)
	return err
}
