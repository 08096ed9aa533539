package postgres

import (
	"context"

	"lotmarket/internal/database/dberr"
	"lotmarket/internal/domain"
	"lotmarket/internal/policy"
)

const contractColumns = `contract_id, auction_id, provider_id, requester_id, agreed_price,
	start_date, end_date, status`

func scanContract(row rowScanner) (domain.Contract, error) {
	var c domain.Contract
	err := row.Scan(&c.ContractID, &c.AuctionID, &c.ProviderID, &c.RequesterID, &c.AgreedPrice,
		&c.StartDate, &c.EndDate, &c.Status)
	return c, err
}

func (s *Store) ListContracts(ctx context.Context, scope policy.Scope) ([]domain.Contract, error) {
	where, args := scopeClause(scope, nil, "provider_id", "requester_id")
	rows, err := s.db.QueryContext(ctx, `SELECT `+contractColumns+` FROM contracts`+where+` ORDER BY contract_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]domain.Contract, 0)
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (s *Store) GetContract(ctx context.Context, id int64) (domain.Contract, error) {
	c, err := scanContract(s.db.QueryRowContext(ctx, `SELECT `+contractColumns+` FROM contracts WHERE contract_id = $1`, id))
	if err != nil {
		return domain.Contract{}, dberr.Translate(err)
	}
	return c, nil
}

func (s *Store) InsertContract(ctx context.Context, in domain.ContractInput) (int64, error) {
	const q = `INSERT INTO contracts (auction_id, provider_id, requester_id, agreed_price,
	                                  start_date, end_date, status)
	                VALUES ($1, $2, $3, $4, $5, $6, $7)
	             RETURNING contract_id`
	return insertReturningID(ctx, s.db, q, in.AuctionID, in.ProviderID, in.RequesterID,
		in.AgreedPrice, in.StartDate, in.EndDate, in.Status)
}

func (s *Store) UpdateContract(ctx context.Context, id int64, in domain.ContractInput) (int64, error) {
	const q = `UPDATE contracts
	              SET auction_id = $2, provider_id = $3, requester_id = $4, agreed_price = $5,
	                  start_date = $6, end_date = $7, status = $8
	            WHERE contract_id = $1`
	return rowsAffected(s.db.ExecContext(ctx, q, id, in.AuctionID, in.ProviderID, in.RequesterID,
		in.AgreedPrice, in.StartDate, in.EndDate, in.Status))
}

func (s *Store) DeleteContract(ctx context.Context, id int64) (int64, error) {
	return rowsAffected(s.db.ExecContext(ctx, `DELETE FROM contracts WHERE contract_id = $1`, id))
}
