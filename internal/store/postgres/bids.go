package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lotmarket/internal/database/dberr"
	"lotmarket/internal/domain"
	"lotmarket/internal/policy"
	"lotmarket/internal/store"
)

const bidViewSelect = `
	SELECT b.bid_id, b.lot_id, b.auction_id, b.bidder_id, b.amount, b.bid_time,
	       u.username,
	       a.request_id, a.start_time, a.end_time, a.status, a.created_at
	  FROM bids b
	  JOIN users u    ON u.user_id = b.bidder_id
	  JOIN auctions a ON a.auction_id = b.auction_id`

const bidOrder = ` ORDER BY b.bid_time DESC, b.bid_id DESC`

func scanBidView(row rowScanner) (domain.BidView, error) {
	var (
		v domain.BidView
		a domain.Auction
	)
	err := row.Scan(&v.BidID, &v.LotID, &v.AuctionID, &v.BidderID, &v.Amount, &v.BidTime,
		&v.Bidder.Username,
		&a.RequestID, &a.StartTime, &a.EndTime, &a.Status, &a.CreatedAt)
	if err != nil {
		return domain.BidView{}, err
	}
	v.Bidder.UserID = v.BidderID
	a.AuctionID = v.AuctionID
	v.Auction = &a
	return v, nil
}

func (s *Store) queryBidViews(ctx context.Context, query string, args ...any) ([]domain.BidView, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]domain.BidView, 0)
	for rows.Next() {
		v, err := scanBidView(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

func (s *Store) ListBids(ctx context.Context, scope policy.Scope) ([]domain.BidView, error) {
	where, args := scopeClause(scope, nil, "b.bidder_id")
	return s.queryBidViews(ctx, bidViewSelect+where+bidOrder, args...)
}

func (s *Store) ListBidsByAuction(ctx context.Context, auctionID int64) ([]domain.BidView, error) {
	return s.queryBidViews(ctx, bidViewSelect+` WHERE b.auction_id = $1`+bidOrder, auctionID)
}

func (s *Store) ListBidsByLot(ctx context.Context, lotID int64) ([]domain.BidView, error) {
	return s.queryBidViews(ctx, bidViewSelect+` WHERE b.lot_id = $1`+bidOrder, lotID)
}

func (s *Store) GetBid(ctx context.Context, id int64) (domain.BidView, error) {
	v, err := scanBidView(s.db.QueryRowContext(ctx, bidViewSelect+` WHERE b.bid_id = $1`, id))
	if err != nil {
		return domain.BidView{}, dberr.Translate(err)
	}
	return v, nil
}

func (s *Store) LastBidByLot(ctx context.Context, lotID int64) (domain.Bid, bool, error) {
	return lastBid(ctx, s.db, lotID)
}

func (s *Store) UpdateBid(ctx context.Context, id int64, in domain.BidCorrection) (int64, error) {
	const q = `UPDATE bids SET amount = $2, lot_id = $3, auction_id = $4 WHERE bid_id = $1`
	return rowsAffected(s.db.ExecContext(ctx, q, id, in.Amount, in.LotID, in.AuctionID))
}

func (s *Store) DeleteBid(ctx context.Context, id int64) (int64, error) {
	return rowsAffected(s.db.ExecContext(ctx, `DELETE FROM bids WHERE bid_id = $1`, id))
}

// PlaceBidTx holds a READ COMMITTED transaction; LockLot takes the row lock
// that serialises concurrent placements on one lot.
func (s *Store) PlaceBidTx(ctx context.Context, fn func(tx store.BidTx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if err = fn(&bidTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type bidTx struct {
	tx *sql.Tx
}

func (b *bidTx) LockLot(ctx context.Context, lotID int64) (domain.Lot, error) {
	row := b.tx.QueryRowContext(ctx, `SELECT `+lotColumns+` FROM lots WHERE lot_id = $1 FOR UPDATE`, lotID)
	l, err := scanLot(row)
	if err != nil {
		return domain.Lot{}, dberr.Translate(err)
	}
	return l, nil
}

func (b *bidTx) GetAuction(ctx context.Context, id int64) (domain.Auction, error) {
	return getAuction(ctx, b.tx, id)
}

func (b *bidTx) LastBid(ctx context.Context, lotID int64) (domain.Bid, bool, error) {
	return lastBid(ctx, b.tx, lotID)
}

func (b *bidTx) InsertBid(ctx context.Context, bid domain.Bid) (int64, error) {
	const q = `INSERT INTO bids (lot_id, auction_id, bidder_id, amount, bid_time)
	                VALUES ($1, $2, $3, $4, $5)
	             RETURNING bid_id`
	return insertReturningID(ctx, b.tx, q, bid.LotID, bid.AuctionID, bid.BidderID, bid.Amount, bid.BidTime)
}

func lastBid(ctx context.Context, q queryer, lotID int64) (domain.Bid, bool, error) {
	const query = `SELECT bid_id, lot_id, auction_id, bidder_id, amount, bid_time
	                 FROM bids
	                WHERE lot_id = $1
	                ORDER BY bid_time DESC, bid_id DESC
	                LIMIT 1`
	var bid domain.Bid
	err := q.QueryRowContext(ctx, query, lotID).
		Scan(&bid.BidID, &bid.LotID, &bid.AuctionID, &bid.BidderID, &bid.Amount, &bid.BidTime)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bid{}, false, nil
	}
	if err != nil {
		return domain.Bid{}, false, err
	}
	return bid, true, nil
}
