package memory

import (
	"context"
	"slices"

	"lotmarket/internal/domain"
	"lotmarket/internal/store"
)

func (s *Store) ListAuctions(context.Context) ([]domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.auctions), nil
}

func (s *Store) GetAuction(_ context.Context, id int64) (domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auctions[id]
	if !ok {
		return domain.Auction{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) InsertAuction(_ context.Context, in domain.AuctionInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID(domain.KindAuction)
	s.auctions[id] = domain.Auction{AuctionID: id, AuctionInput: in, CreatedAt: s.now()}
	return id, nil
}

func (s *Store) UpdateAuction(_ context.Context, id int64, in domain.AuctionInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[id]
	if !ok {
		return 0, nil
	}
	a.AuctionInput = in
	s.auctions[id] = a
	return 1, nil
}

// DeleteAuction cascades to the auction's lots, bids and contracts.
func (s *Store) DeleteAuction(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.auctions[id]; !ok {
		return 0, nil
	}
	delete(s.auctions, id)
	for lotID, l := range s.lots {
		if l.AuctionID == id {
			s.deleteLotLocked(lotID)
		}
	}
	for bidID, b := range s.bids {
		if b.AuctionID == id {
			delete(s.bids, bidID)
		}
	}
	for contractID, c := range s.contracts {
		if c.AuctionID == id {
			s.deleteContractLocked(contractID)
		}
	}
	return 1, nil
}

func (s *Store) ListLots(context.Context) ([]domain.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.lots), nil
}

func (s *Store) ListOpenLots(ctx context.Context) ([]domain.Lot, error) {
	all, _ := s.ListLots(ctx)
	return slices.DeleteFunc(all, func(l domain.Lot) bool { return l.Status != domain.LotOpen }), nil
}

func (s *Store) GetLot(_ context.Context, id int64) (domain.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lots[id]
	if !ok {
		return domain.Lot{}, store.ErrNotFound
	}
	return l, nil
}

// checkLotRefs must be called with mu held.
func (s *Store) checkLotRefs(in domain.LotInput) error {
	if _, ok := s.auctions[in.AuctionID]; !ok {
		return missing("auction", "auction_id")
	}
	if _, ok := s.users[in.RequesterID]; !ok {
		return missing("user", "requester_id")
	}
	if in.WinnerID != nil {
		if _, ok := s.users[*in.WinnerID]; !ok {
			return missing("user", "winner_id")
		}
	}
	return nil
}

func (s *Store) InsertLot(_ context.Context, in domain.LotInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLotRefs(in); err != nil {
		return 0, err
	}
	id := s.nextID(domain.KindLot)
	s.lots[id] = domain.Lot{LotID: id, LotInput: in, CreatedAt: s.now()}
	return id, nil
}

func (s *Store) UpdateLot(_ context.Context, id int64, in domain.LotInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lots[id]
	if !ok {
		return 0, nil
	}
	if err := s.checkLotRefs(in); err != nil {
		return 0, err
	}
	l.LotInput = in
	s.lots[id] = l
	return 1, nil
}

func (s *Store) DeleteLot(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lots[id]; !ok {
		return 0, nil
	}
	s.deleteLotLocked(id)
	return 1, nil
}

func (s *Store) deleteLotLocked(id int64) {
	delete(s.lots, id)
	for bidID, b := range s.bids {
		if b.LotID == id {
			delete(s.bids, bidID)
		}
	}
	for _, favs := range s.favorites {
		delete(favs, id)
	}
}
