package memory

import (
	"context"
	"slices"

	"lotmarket/internal/domain"
	"lotmarket/internal/policy"
	"lotmarket/internal/store"
)

// PlaceBidTx buffers the bids fn inserts and applies them only when fn
// succeeds and ctx is still live. Locks taken by LockLot are held until
// then.
func (s *Store) PlaceBidTx(ctx context.Context, fn func(tx store.BidTx) error) error {
	tx := &bidTx{s: s}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range tx.pending {
		if err := s.checkBidRefs(b); err != nil {
			return err
		}
	}
	for _, b := range tx.pending {
		s.bids[b.BidID] = b
	}
	return nil
}

type bidTx struct {
	s       *Store
	unlock  []func()
	locked  []int64
	pending []domain.Bid
}

func (t *bidTx) release() {
	for i := len(t.unlock) - 1; i >= 0; i-- {
		t.unlock[i]()
	}
}

func (t *bidTx) LockLot(ctx context.Context, lotID int64) (domain.Lot, error) {
	if !slices.Contains(t.locked, lotID) {
		unlock, err := t.s.lockLot(ctx, lotID)
		if err != nil {
			return domain.Lot{}, err
		}
		t.unlock = append(t.unlock, unlock)
		t.locked = append(t.locked, lotID)
	}
	return t.s.GetLot(ctx, lotID)
}

func (t *bidTx) GetAuction(ctx context.Context, id int64) (domain.Auction, error) {
	return t.s.GetAuction(ctx, id)
}

func (t *bidTx) LastBid(ctx context.Context, lotID int64) (domain.Bid, bool, error) {
	last, ok, err := t.s.LastBidByLot(ctx, lotID)
	if err != nil {
		return domain.Bid{}, false, err
	}
	for _, b := range t.pending {
		if b.LotID == lotID && (!ok || newestFirst(b, last) < 0) {
			last, ok = b, true
		}
	}
	return last, ok, nil
}

func (t *bidTx) InsertBid(ctx context.Context, b domain.Bid) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	b.BidID = t.s.nextID(domain.KindBid)
	t.s.mu.Unlock()
	t.pending = append(t.pending, b)
	return b.BidID, nil
}

// checkBidRefs must be called with mu held.
func (s *Store) checkBidRefs(b domain.Bid) error {
	if _, ok := s.lots[b.LotID]; !ok {
		return missing("lot", "lot_id")
	}
	if _, ok := s.auctions[b.AuctionID]; !ok {
		return missing("auction", "auction_id")
	}
	if _, ok := s.users[b.BidderID]; !ok {
		return missing("user", "bidder_id")
	}
	return nil
}

// bidView must be called with mu held.
func (s *Store) bidView(b domain.Bid) domain.BidView {
	v := domain.BidView{Bid: b, Bidder: domain.PublicUser{UserID: b.BidderID}}
	if u, ok := s.users[b.BidderID]; ok {
		v.Bidder = u.Public()
	}
	if a, ok := s.auctions[b.AuctionID]; ok {
		v.Auction = &a
	}
	return v
}

func (s *Store) bidViews(keep func(domain.Bid) bool) []domain.BidView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bids := make([]domain.Bid, 0)
	for _, b := range s.bids {
		if keep(b) {
			bids = append(bids, b)
		}
	}
	slices.SortFunc(bids, newestFirst)

	list := make([]domain.BidView, 0, len(bids))
	for _, b := range bids {
		list = append(list, s.bidView(b))
	}
	return list
}

func (s *Store) ListBids(_ context.Context, scope policy.Scope) ([]domain.BidView, error) {
	return s.bidViews(func(b domain.Bid) bool { return scope.Matches(b) }), nil
}

func (s *Store) ListBidsByAuction(_ context.Context, auctionID int64) ([]domain.BidView, error) {
	return s.bidViews(func(b domain.Bid) bool { return b.AuctionID == auctionID }), nil
}

func (s *Store) ListBidsByLot(_ context.Context, lotID int64) ([]domain.BidView, error) {
	return s.bidViews(func(b domain.Bid) bool { return b.LotID == lotID }), nil
}

func (s *Store) GetBid(_ context.Context, id int64) (domain.BidView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bids[id]
	if !ok {
		return domain.BidView{}, store.ErrNotFound
	}
	return s.bidView(b), nil
}

func (s *Store) LastBidByLot(_ context.Context, lotID int64) (domain.Bid, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		last  domain.Bid
		found bool
	)
	for _, b := range s.bids {
		if b.LotID == lotID && (!found || newestFirst(b, last) < 0) {
			last, found = b, true
		}
	}
	return last, found, nil
}

func (s *Store) UpdateBid(_ context.Context, id int64, in domain.BidCorrection) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bids[id]
	if !ok {
		return 0, nil
	}
	b.LotID, b.AuctionID, b.Amount = in.LotID, in.AuctionID, in.Amount
	if err := s.checkBidRefs(b); err != nil {
		return 0, err
	}
	s.bids[id] = b
	return 1, nil
}

func (s *Store) DeleteBid(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.bids[id]
	delete(s.bids, id)
	return boolRows(ok), nil
}
