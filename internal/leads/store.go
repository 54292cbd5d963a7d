package leads

import (
	"context"
	"errors"
)

// Store is the persistence contract for lead datasets.
//
// Implementations must serialize mutations per dataset: the scheduler's
// suppression-skip loop and the reconciler can touch the same dataset from
// different goroutines, and neither write may be lost.
type Store interface {
	// NextEligible scans the dataset in row order and returns the first
	// eligible lead. targetZip narrows the scan when non-empty.
	NextEligible(ctx context.Context, datasetID, targetZip string) (Lead, RowRef, bool, error)

	// Row returns the current contents of one lead row.
	Row(ctx context.Context, ref RowRef) (Lead, bool, error)

	// MarkCalled sets the row's status to called and fills the outcome
	// fields. Safe to call more than once for the same attempt.
	MarkCalled(ctx context.Context, ref RowRef, out Outcome) error

	// Revert returns a row to not-called so a scheduled second attempt can
	// redispatch it. Outcome fields from the first attempt are kept; the
	// retry outcome overwrites them.
	Revert(ctx context.Context, ref RowRef) error

	// FindByPhone matches on the last ten digits, used for inbound lookup.
	FindByPhone(ctx context.Context, datasetID, phone string) (Lead, RowRef, bool, error)

	// ReplaceRows atomically replaces the dataset's rows (bulk import).
	ReplaceRows(ctx context.Context, datasetID, name string, rows []Lead) error

	ListDatasets(ctx context.Context) ([]Dataset, error)
	RemoveDataset(ctx context.Context, datasetID string) error
}

var (
	ErrDatasetNotFound = errors.New("leads: dataset not found")
	ErrRowNotFound     = errors.New("leads: row not found")
)
