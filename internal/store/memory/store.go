// Package memory is an in-process store.Store used in development mode and
// by the service tests. It keeps the same contract as the Postgres store,
// including per-lot serialisation of bid placements and the unique and
// foreign key checks the schema enforces.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"lotmarket/internal/apperr"
	"lotmarket/internal/domain"
	"lotmarket/internal/store"
)

type Store struct {
	mu sync.RWMutex

	auctions  map[int64]domain.Auction
	lots      map[int64]domain.Lot
	bids      map[int64]domain.Bid
	contracts map[int64]domain.Contract
	invoices  map[int64]domain.Invoice
	reviews   map[int64]domain.Review
	companies map[int64]domain.Company
	users     map[int64]domain.User
	favorites map[int64]map[int64]struct{} // user -> lots

	seq map[domain.Kind]int64

	locksMu     sync.Mutex
	lotLocks    map[int64]chan struct{}
	lockTimeout time.Duration

	now func() time.Time
}

var _ store.Store = (*Store)(nil)

type Options struct {
	// LockTimeout bounds the wait for a lot lock; zero waits until the
	// context is done.
	LockTimeout time.Duration
	// Now overrides the clock used for generated timestamps.
	Now func() time.Time
}

func New(opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		auctions:    make(map[int64]domain.Auction),
		lots:        make(map[int64]domain.Lot),
		bids:        make(map[int64]domain.Bid),
		contracts:   make(map[int64]domain.Contract),
		invoices:    make(map[int64]domain.Invoice),
		reviews:     make(map[int64]domain.Review),
		companies:   make(map[int64]domain.Company),
		users:       make(map[int64]domain.User),
		favorites:   make(map[int64]map[int64]struct{}),
		seq:         make(map[domain.Kind]int64),
		lotLocks:    make(map[int64]chan struct{}),
		lockTimeout: opts.LockTimeout,
		now:         now,
	}
}

func (s *Store) Close() error { return nil }

// nextID must be called with mu held for writing.
func (s *Store) nextID(kind domain.Kind) int64 {
	s.seq[kind]++
	return s.seq[kind]
}

// sortedValues returns the map values ordered by key.
func sortedValues[V any](m map[int64]V) []V {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func missing(resource, column string) error {
	return &apperr.Error{Kind: apperr.ErrNotFound, Resource: resource, Field: column}
}

func duplicate(field string) error {
	return &apperr.Error{Kind: apperr.ErrConflict, Field: field, Reason: "already in use"}
}

func boolRows(ok bool) int64 {
	if ok {
		return 1
	}
	return 0
}

// newestFirst orders bids by bid time, ties broken by the higher id.
func newestFirst(a, b domain.Bid) int {
	if c := b.BidTime.Compare(a.BidTime); c != 0 {
		return c
	}
	return cmp.Compare(b.BidID, a.BidID)
}

// lockLot acquires the lot's lock. The returned func releases it.
func (s *Store) lockLot(ctx context.Context, lotID int64) (func(), error) {
	s.locksMu.Lock()
	l, ok := s.lotLocks[lotID]
	if !ok {
		l = make(chan struct{}, 1)
		s.lotLocks[lotID] = l
	}
	s.locksMu.Unlock()

	var timeout <-chan time.Time
	if s.lockTimeout > 0 {
		t := time.NewTimer(s.lockTimeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case l <- struct{}{}:
		return func() { <-l }, nil
	case <-timeout:
		return nil, store.ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
