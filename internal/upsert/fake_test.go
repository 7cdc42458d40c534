package upsert

import (
	"context"
	"errors"
	"sync"

	"github.com/amishk599/hiringradar/internal/model"
)

type postingKey struct {
	companyID   int64
	sourceJobID string
}

// memStore is an in-memory PostingStore. A transaction works on a copy that
// replaces the committed state only when fn succeeds.
type memStore struct {
	mu        sync.Mutex
	postings  map[postingKey]model.JobPosting
	snapshots []model.RawSnapshot
	nextID    int64
	failOn    string // source job id whose insert/update fails
}

func newMemStore() *memStore {
	return &memStore{postings: make(map[postingKey]model.JobPosting)}
}

func (s *memStore) WithTx(ctx context.Context, fn func(tx model.PostingTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:    s,
		postings: make(map[postingKey]model.JobPosting, len(s.postings)),
		nextID:   s.nextID,
	}
	for k, v := range s.postings {
		tx.postings[k] = v
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.postings = tx.postings
	s.snapshots = append(s.snapshots, tx.snapshots...)
	s.nextID = tx.nextID
	return nil
}

func (s *memStore) get(companyID int64, sourceJobID string) (model.JobPosting, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.postings[postingKey{companyID, sourceJobID}]
	return p, ok
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.postings)
}

type memTx struct {
	store     *memStore
	postings  map[postingKey]model.JobPosting
	snapshots []model.RawSnapshot
	nextID    int64
}

func (tx *memTx) FindPosting(_ context.Context, companyID int64, sourceJobID string) (*model.JobPosting, error) {
	p, ok := tx.postings[postingKey{companyID, sourceJobID}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (tx *memTx) InsertPosting(_ context.Context, p *model.JobPosting) error {
	if p.SourceJobID == tx.store.failOn {
		return errors.New("insert failed")
	}
	tx.nextID++
	p.ID = tx.nextID
	tx.postings[postingKey{p.CompanyID, p.SourceJobID}] = *p
	return nil
}

func (tx *memTx) UpdatePosting(_ context.Context, p *model.JobPosting) error {
	if p.SourceJobID == tx.store.failOn {
		return errors.New("update failed")
	}
	tx.postings[postingKey{p.CompanyID, p.SourceJobID}] = *p
	return nil
}

func (tx *memTx) InsertRawSnapshot(_ context.Context, snap model.RawSnapshot) error {
	tx.snapshots = append(tx.snapshots, snap)
	return nil
}
