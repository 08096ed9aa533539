// Package lotsync mirrors lot status and current bids from the store into the
// Redis lot snapshots, so a flushed or restarted Redis is repopulated.
package lotsync

import (
	"context"
	"errors"
	"time"

	"lotmarket/internal/domain"
	"lotmarket/internal/metrics"
	"lotmarket/internal/store"

	"go.uber.org/zap"
)

type lotSource interface {
	ListOpenLots(ctx context.Context) ([]domain.Lot, error)
	GetLot(ctx context.Context, id int64) (domain.Lot, error)
	LastBidByLot(ctx context.Context, lotID int64) (domain.Bid, bool, error)
}

type snapshotWriter interface {
	SyncLot(ctx context.Context, l domain.Lot, last *domain.Bid) (bool, error)
}

type Syncer struct {
	src      lotSource
	dst      snapshotWriter
	interval time.Duration
	// open holds the lots seen open in the previous round, so a lot that
	// closed since then gets its final status written once.
	open map[int64]struct{}
}

func New(src lotSource, dst snapshotWriter, interval time.Duration) *Syncer {
	return &Syncer{src: src, dst: dst, interval: interval, open: map[int64]struct{}{}}
}

// Run syncs once right away and then every interval until ctx is done.
func (s *Syncer) Run(ctx context.Context) {
	tk := time.NewTicker(s.interval)
	go func() {
		defer tk.Stop()
		s.round(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				s.round(ctx)
			}
		}
	}()
}

func (s *Syncer) round(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()
	changed, err := s.SyncOnce(ctx)
	if err != nil {
		zap.L().Warn("lotsync.round_failed", zap.Int("changed", changed), zap.Error(err))
	}
	if changed > 0 {
		metrics.AddLotSnapshotsSynced(changed)
		zap.L().Debug("lotsync.round", zap.Int("changed", changed))
	}
}

// SyncOnce writes every open lot, and every lot that was open last round,
// into its snapshot. It returns how many snapshots changed. A failing lot
// does not stop the others.
func (s *Syncer) SyncOnce(ctx context.Context) (int, error) {
	lots, err := s.src.ListOpenLots(ctx)
	if err != nil {
		return 0, err
	}

	var (
		changed int
		errs    []error
	)
	open := make(map[int64]struct{}, len(lots))
	for _, l := range lots {
		open[l.LotID] = struct{}{}
		ok, err := s.syncLot(ctx, l)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			changed++
		}
	}

	for id := range s.open {
		if _, still := open[id]; still {
			continue
		}
		l, err := s.src.GetLot(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			// try again next round
			open[id] = struct{}{}
			errs = append(errs, err)
			continue
		}
		ok, err := s.syncLot(ctx, l)
		if err != nil {
			open[id] = struct{}{}
			errs = append(errs, err)
			continue
		}
		if ok {
			changed++
		}
	}
	s.open = open
	return changed, errors.Join(errs...)
}

func (s *Syncer) syncLot(ctx context.Context, l domain.Lot) (bool, error) {
	last, ok, err := s.src.LastBidByLot(ctx, l.LotID)
	if err != nil {
		return false, err
	}
	if !ok {
		return s.dst.SyncLot(ctx, l, nil)
	}
	return s.dst.SyncLot(ctx, l, &last)
}
