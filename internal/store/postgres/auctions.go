package postgres

import (
	"context"

	"lotmarket/internal/database/dberr"
	"lotmarket/internal/domain"
)

const auctionColumns = `auction_id, request_id, start_time, end_time, status, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (domain.Auction, error) {
	var a domain.Auction
	err := row.Scan(&a.AuctionID, &a.RequestID, &a.StartTime, &a.EndTime, &a.Status, &a.CreatedAt)
	return a, err
}

func (s *Store) ListAuctions(ctx context.Context) ([]domain.Auction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+auctionColumns+` FROM auctions ORDER BY auction_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]domain.Auction, 0)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (s *Store) GetAuction(ctx context.Context, id int64) (domain.Auction, error) {
	return getAuction(ctx, s.db, id)
}

func getAuction(ctx context.Context, q queryer, id int64) (domain.Auction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE auction_id = $1`, id)
	a, err := scanAuction(row)
	if err != nil {
		return domain.Auction{}, dberr.Translate(err)
	}
	return a, nil
}

func (s *Store) InsertAuction(ctx context.Context, in domain.AuctionInput) (int64, error) {
	const q = `INSERT INTO auctions (request_id, start_time, end_time, status)
	                VALUES ($1, $2, $3, $4)
	             RETURNING auction_id`
	return insertReturningID(ctx, s.db, q, in.RequestID, in.StartTime, in.EndTime, in.Status)
}

func (s *Store) UpdateAuction(ctx context.Context, id int64, in domain.AuctionInput) (int64, error) {
	const q = `UPDATE auctions
	              SET request_id = $2, start_time = $3, end_time = $4, status = $5
	            WHERE auction_id = $1`
	return rowsAffected(s.db.ExecContext(ctx, q, id, in.RequestID, in.StartTime, in.EndTime, in.Status))
}

func (s *Store) DeleteAuction(ctx context.Context, id int64) (int64, error) {
	return rowsAffected(s.db.ExecContext(ctx, `DELETE FROM auctions WHERE auction_id = $1`, id))
}
