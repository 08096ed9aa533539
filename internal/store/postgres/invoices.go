package postgres

import (
	"context"

	"lotmarket/internal/database/dberr"
	"lotmarket/internal/domain"
	"lotmarket/internal/policy"
)

const invoiceSelect = `
	SELECT i.invoice_id, i.contract_id, i.amount, i.issue_date, i.due_date, i.status,
	       c.auction_id, c.provider_id, c.requester_id, c.agreed_price,
	       c.start_date, c.end_date, c.status
	  FROM invoices i
	  JOIN contracts c ON c.contract_id = i.contract_id`

func scanInvoice(row rowScanner) (domain.Invoice, error) {
	var (
		i domain.Invoice
		c domain.Contract
	)
	err := row.Scan(&i.InvoiceID, &i.ContractID, &i.Amount, &i.IssueDate, &i.DueDate, &i.Status,
		&c.AuctionID, &c.ProviderID, &c.RequesterID, &c.AgreedPrice, &c.StartDate, &c.EndDate, &c.Status)
	if err != nil {
		return domain.Invoice{}, err
	}
	c.ContractID = i.ContractID
	i.Contract = &c
	return i, nil
}

func (s *Store) ListInvoices(ctx context.Context, scope policy.Scope) ([]domain.Invoice, error) {
	where, args := scopeClause(scope, nil, "c.provider_id", "c.requester_id")
	rows, err := s.db.QueryContext(ctx, invoiceSelect+where+` ORDER BY i.invoice_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]domain.Invoice, 0)
	for rows.Next() {
		i, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, i)
	}
	return list, rows.Err()
}

func (s *Store) GetInvoice(ctx context.Context, id int64) (domain.Invoice, error) {
	i, err := scanInvoice(s.db.QueryRowContext(ctx, invoiceSelect+` WHERE i.invoice_id = $1`, id))
	if err != nil {
		return domain.Invoice{}, dberr.Translate(err)
	}
	return i, nil
}

func (s *Store) InsertInvoice(ctx context.Context, in domain.InvoiceInput) (int64, error) {
	const q = `INSERT INTO invoices (contract_id, amount, issue_date, due_date, status)
	                VALUES ($1, $2, $3, $4, $5)
	             RETURNING invoice_id`
	return insertReturningID(ctx, s.db, q, in.ContractID, in.Amount, in.IssueDate, in.DueDate, in.Status)
}

func (s *Store) UpdateInvoice(ctx context.Context, id int64, in domain.InvoiceInput) (int64, error) {
	const q = `UPDATE invoices
	              SET contract_id = $2, amount = $3, issue_date = $4, due_date = $5, status = $6
	            WHERE invoice_id = $1`
	return rowsAffected(s.db.ExecContext(ctx, q, id, in.ContractID, in.Amount, in.IssueDate, in.DueDate, in.Status))
}

func (s *Store) DeleteInvoice(ctx context.Context, id int64) (int64, error) {
	return rowsAffected(s.db.ExecContext(ctx, `DELETE FROM invoices WHERE invoice_id = $1`, id))
}
