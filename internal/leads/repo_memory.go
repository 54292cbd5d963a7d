package leads

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps datasets in process memory. It backs unit tests and
// early development; production uses PostgresStore.
type MemoryStore struct {
	mu       sync.Mutex
	datasets map[string]*memDataset
	clock    func() time.Time
}

type memDataset struct {
	name      string
	createdAt time.Time
	rows      []Lead
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		datasets: make(map[string]*memDataset),
		clock:    time.Now,
	}
}

func (s *MemoryStore) NextEligible(ctx context.Context, datasetID, targetZip string) (Lead, RowRef, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.datasets[datasetID]
	if !ok {
		return Lead{}, RowRef{}, false, ErrDatasetNotFound
	}
	for i, l := range ds.rows {
		if Eligible(l, targetZip) {
			return l, RowRef{DatasetID: datasetID, RowIndex: i}, true, nil
		}
	}
	return Lead{}, RowRef{}, false, nil
}

func (s *MemoryStore) Row(ctx context.Context, ref RowRef) (Lead, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.datasets[ref.DatasetID]
	if !ok {
		return Lead{}, false, ErrDatasetNotFound
	}
	if ref.RowIndex < 0 || ref.RowIndex >= len(ds.rows) {
		return Lead{}, false, nil
	}
	return ds.rows[ref.RowIndex], true, nil
}

func (s *MemoryStore) MarkCalled(ctx context.Context, ref RowRef, out Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.datasets[ref.DatasetID]
	if !ok {
		return ErrDatasetNotFound
	}
	if ref.RowIndex < 0 || ref.RowIndex >= len(ds.rows) {
		return ErrRowNotFound
	}
	row := &ds.rows[ref.RowIndex]
	row.Status = StatusCalled
	row.EndedReason = out.EndedReason
	row.SuccessEvaluation = out.SuccessEvaluation
	row.Transcript = out.Transcript
	return nil
}

func (s *MemoryStore) Revert(ctx context.Context, ref RowRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.datasets[ref.DatasetID]
	if !ok {
		return ErrDatasetNotFound
	}
	if ref.RowIndex < 0 || ref.RowIndex >= len(ds.rows) {
		return ErrRowNotFound
	}
	ds.rows[ref.RowIndex].Status = StatusNotCalled
	return nil
}

func (s *MemoryStore) FindByPhone(ctx context.Context, datasetID, phone string) (Lead, RowRef, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.datasets[datasetID]
	if !ok {
		return Lead{}, RowRef{}, false, ErrDatasetNotFound
	}
	for i, l := range ds.rows {
		if SamePhone(l.Phone, phone) {
			return l, RowRef{DatasetID: datasetID, RowIndex: i}, true, nil
		}
	}
	return Lead{}, RowRef{}, false, nil
}

func (s *MemoryStore) ReplaceRows(ctx context.Context, datasetID, name string, rows []Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.datasets[datasetID]
	if !ok {
		ds = &memDataset{createdAt: s.clock().UTC()}
		s.datasets[datasetID] = ds
	}
	if name != "" {
		ds.name = name
	}
	copied := make([]Lead, len(rows))
	copy(copied, rows)
	for i := range copied {
		if copied[i].Status == "" {
			copied[i].Status = StatusNotCalled
		}
	}
	ds.rows = copied
	return nil
}

func (s *MemoryStore) ListDatasets(ctx context.Context) ([]Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Dataset, 0, len(s.datasets))
	for id, ds := range s.datasets {
		out = append(out, Dataset{ID: id, Name: ds.name, CreatedAt: ds.createdAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) RemoveDataset(ctx context.Context, datasetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[datasetID]; !ok {
		return ErrDatasetNotFound
	}
	delete(s.datasets, datasetID)
	return nil
}
