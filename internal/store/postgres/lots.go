package postgres

import (
	"context"
	"database/sql"

	"lotmarket/internal/database/dberr"
	"lotmarket/internal/domain"
)

const lotColumns = `lot_id, auction_id, request_id, requester_id, winner_id, title, description,
	category, start_time, end_time, status, start_bid, reserved_price, buy_price,
	is_reversed, can_bid_higher, extra_information, created_at`

func scanLot(row rowScanner) (domain.Lot, error) {
	var (
		l        domain.Lot
		winnerID sql.NullInt64
		extra    sql.NullString
	)
	err := row.Scan(&l.LotID, &l.AuctionID, &l.RequestID, &l.RequesterID, &winnerID, &l.Title,
		&l.Description, &l.Category, &l.StartTime, &l.EndTime, &l.Status, &l.StartBid,
		&l.ReservedPrice, &l.BuyPrice, &l.IsReversed, &l.CanBidHigher, &extra, &l.CreatedAt)
	if err != nil {
		return domain.Lot{}, err
	}
	l.WinnerID = int64Ptr(winnerID)
	l.ExtraInformation = stringPtr(extra)
	return l, nil
}

func queryLots(ctx context.Context, q queryer, query string, args ...any) ([]domain.Lot, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]domain.Lot, 0)
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

func (s *Store) ListLots(ctx context.Context) ([]domain.Lot, error) {
	return queryLots(ctx, s.db, `SELECT `+lotColumns+` FROM lots ORDER BY lot_id`)
}

func (s *Store) ListOpenLots(ctx context.Context) ([]domain.Lot, error) {
	return queryLots(ctx, s.db, `SELECT `+lotColumns+` FROM lots WHERE status = 'open' ORDER BY lot_id`)
}

func (s *Store) GetLot(ctx context.Context, id int64) (domain.Lot, error) {
	l, err := scanLot(s.db.QueryRowContext(ctx, `SELECT `+lotColumns+` FROM lots WHERE lot_id = $1`, id))
	if err != nil {
		return domain.Lot{}, dberr.Translate(err)
	}
	return l, nil
}

func lotArgs(in domain.LotInput) []any {
	return []any{in.AuctionID, in.RequestID, in.RequesterID, nullInt64(in.WinnerID), in.Title,
		in.Description, in.Category, in.StartTime, in.EndTime, in.Status, in.StartBid,
		in.ReservedPrice, in.BuyPrice, in.IsReversed, in.CanBidHigher, nullString(in.ExtraInformation)}
}

func (s *Store) InsertLot(ctx context.Context, in domain.LotInput) (int64, error) {
	const q = `INSERT INTO lots (auction_id, request_id, requester_id, winner_id, title, description,
	                             category, start_time, end_time, status, start_bid, reserved_price,
	                             buy_price, is_reversed, can_bid_higher, extra_information)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	             RETURNING lot_id`
	return insertReturningID(ctx, s.db, q, lotArgs(in)...)
}

func (s *Store) UpdateLot(ctx context.Context, id int64, in domain.LotInput) (int64, error) {
	const q = `UPDATE lots
	              SET auction_id = $2, request_id = $3, requester_id = $4, winner_id = $5,
	                  title = $6, description = $7, category = $8, start_time = $9,
	                  end_time = $10, status = $11, start_bid = $12, reserved_price = $13,
	                  buy_price = $14, is_reversed = $15, can_bid_higher = $16,
	                  extra_information = $17
	            WHERE lot_id = $1`
	args := append([]any{id}, lotArgs(in)...)
	return rowsAffected(s.db.ExecContext(ctx, q, args...))
}

func (s *Store) DeleteLot(ctx context.Context, id int64) (int64, error) {
	return rowsAffected(s.db.ExecContext(ctx, `DELETE FROM lots WHERE lot_id = $1`, id))
}
