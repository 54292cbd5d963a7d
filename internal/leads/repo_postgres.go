package leads

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"outdial/pkg/utils"
)

// PostgresStore persists lead datasets in two tables:
// - lead_datasets (id, name, created_at)
// - lead_rows (dataset_id, row_index, identity columns, call status columns)
//
// Eligibility filters that need digit counting run in Go over an ordered
// scan; datasets are thousands of rows, not millions, so a full scan per
// tick is acceptable and matches row-order (upload order) selection.
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

// EnsureSchema creates the lead tables when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS lead_datasets (
  id         TEXT PRIMARY KEY,
  name       TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS lead_rows (
  dataset_id         TEXT NOT NULL REFERENCES lead_datasets(id) ON DELETE CASCADE,
  row_index          INT NOT NULL,
  first_name         TEXT NOT NULL DEFAULT '',
  last_name          TEXT NOT NULL DEFAULT '',
  address            TEXT NOT NULL DEFAULT '',
  city               TEXT NOT NULL DEFAULT '',
  zip                TEXT NOT NULL DEFAULT '',
  phone              TEXT NOT NULL DEFAULT '',
  email              TEXT NOT NULL DEFAULT '',
  email2             TEXT NOT NULL DEFAULT '',
  status             TEXT NOT NULL DEFAULT 'not-called',
  ended_reason       TEXT NOT NULL DEFAULT '',
  success_evaluation TEXT NOT NULL DEFAULT '',
  transcript         TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (dataset_id, row_index)
);
`
	_, err := s.db.ExecContext(ctx, q)
	return err
}

const rowColumns = `first_name, last_name, address, city, zip, phone, email, email2, status, ended_reason, success_evaluation, transcript`

func scanLead(scan func(dest ...any) error) (Lead, error) {
	var l Lead
	err := scan(
		&l.FirstName,
		&l.LastName,
		&l.Address,
		&l.City,
		&l.Zip,
		&l.Phone,
		&l.Email,
		&l.Email2,
		&l.Status,
		&l.EndedReason,
		&l.SuccessEvaluation,
		&l.Transcript,
	)
	return l, err
}

func (s *PostgresStore) NextEligible(ctx context.Context, datasetID, targetZip string) (Lead, RowRef, bool, error) {
	if ok, err := s.datasetExists(ctx, datasetID); err != nil {
		return Lead{}, RowRef{}, false, err
	} else if !ok {
		return Lead{}, RowRef{}, false, ErrDatasetNotFound
	}

	const q = `
SELECT row_index, ` + rowColumns + `
FROM lead_rows
WHERE dataset_id = $1 AND status = 'not-called'
ORDER BY row_index
`
	rows, err := s.db.QueryContext(ctx, q, datasetID)
	if err != nil {
		return Lead{}, RowRef{}, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var idx int
		l, err := scanLead(func(dest ...any) error {
			return rows.Scan(append([]any{&idx}, dest...)...)
		})
		if err != nil {
			return Lead{}, RowRef{}, false, err
		}
		if Eligible(l, targetZip) {
			return l, RowRef{DatasetID: datasetID, RowIndex: idx}, true, nil
		}
	}
	return Lead{}, RowRef{}, false, rows.Err()
}

func (s *PostgresStore) Row(ctx context.Context, ref RowRef) (Lead, bool, error) {
	const q = `
SELECT ` + rowColumns + `
FROM lead_rows
WHERE dataset_id = $1 AND row_index = $2
`
	l, err := scanLead(func(dest ...any) error {
		return s.db.QueryRowContext(ctx, q, ref.DatasetID, ref.RowIndex).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lead{}, false, nil
		}
		return Lead{}, false, err
	}
	return l, true, nil
}

func (s *PostgresStore) MarkCalled(ctx context.Context, ref RowRef, out Outcome) error {
	const q = `
UPDATE lead_rows
SET status = 'called', ended_reason = $3, success_evaluation = $4, transcript = $5
WHERE dataset_id = $1 AND row_index = $2
`
	res, err := s.db.ExecContext(ctx, q, ref.DatasetID, ref.RowIndex, out.EndedReason, out.SuccessEvaluation, out.Transcript)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRowNotFound
	}
	return nil
}

func (s *PostgresStore) Revert(ctx context.Context, ref RowRef) error {
	const q = `
UPDATE lead_rows
SET status = 'not-called'
WHERE dataset_id = $1 AND row_index = $2
`
	res, err := s.db.ExecContext(ctx, q, ref.DatasetID, ref.RowIndex)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRowNotFound
	}
	return nil
}

func (s *PostgresStore) FindByPhone(ctx context.Context, datasetID, phone string) (Lead, RowRef, bool, error) {
	const q = `
SELECT row_index, ` + rowColumns + `
FROM lead_rows
WHERE dataset_id = $1
ORDER BY row_index
`
	rows, err := s.db.QueryContext(ctx, q, datasetID)
	if err != nil {
		return Lead{}, RowRef{}, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var idx int
		l, err := scanLead(func(dest ...any) error {
			return rows.Scan(append([]any{&idx}, dest...)...)
		})
		if err != nil {
			return Lead{}, RowRef{}, false, err
		}
		if SamePhone(l.Phone, phone) {
			return l, RowRef{DatasetID: datasetID, RowIndex: idx}, true, nil
		}
	}
	return Lead{}, RowRef{}, false, rows.Err()
}

func (s *PostgresStore) ReplaceRows(ctx context.Context, datasetID, name string, rows []Lead) error {
	now := s.clock().UTC()
	return utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		const upsert = `
INSERT INTO lead_datasets (id, name, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE lead_datasets.name END
`
		if _, err := tx.ExecContext(ctx, upsert, datasetID, name, now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM lead_rows WHERE dataset_id = $1`, datasetID); err != nil {
			return err
		}
		const ins = `
INSERT INTO lead_rows (dataset_id, row_index, ` + rowColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`
		for i, l := range rows {
			status := l.Status
			if status == "" {
				status = StatusNotCalled
			}
			if _, err := tx.ExecContext(ctx, ins,
				datasetID, i,
				l.FirstName, l.LastName, l.Address, l.City, l.Zip, l.Phone, l.Email, l.Email2,
				status, l.EndedReason, l.SuccessEvaluation, l.Transcript,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) ListDatasets(ctx context.Context) ([]Dataset, error) {
	const q = `SELECT id, name, created_at FROM lead_datasets ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Dataset
	for rows.Next() {
		var d Dataset
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RemoveDataset(ctx context.Context, datasetID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lead_datasets WHERE id = $1`, datasetID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDatasetNotFound
	}
	return nil
}

func (s *PostgresStore) datasetExists(ctx context.Context, datasetID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM lead_datasets WHERE id = $1`, datasetID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
