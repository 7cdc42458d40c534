package store

import (
	"context"
	"errors"
	"time"

	"github.com/amishk599/hiringradar/internal/model"
)

// errDryRun forces the batch transaction to roll back.
var errDryRun = errors.New("dry run")

// DryRunStore is used in dry-run mode. Batches run against the real tables so
// insert/update counts are accurate, then roll back; sources are never stamped.
type DryRunStore struct {
	*Store
}

func NewDryRunStore(s *Store) *DryRunStore { return &DryRunStore{Store: s} }

func (d *DryRunStore) WithTx(ctx context.Context, fn func(tx model.PostingTx) error) error {
	err := d.Store.WithTx(ctx, func(tx model.PostingTx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return errDryRun
	})
	if errors.Is(err, errDryRun) {
		return nil
	}
	return err
}

func (d *DryRunStore) MarkSourceOK(ctx context.Context, sourceID int64, at time.Time) error {
	return nil
}
