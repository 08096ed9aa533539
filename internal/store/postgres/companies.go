package postgres

import (
	"context"
	"database/sql"

	"lotmarket/internal/database/dberr"
	"lotmarket/internal/domain"
	"lotmarket/internal/policy"
)

const companyColumns = `company_id, name, vat_number, address, city, country, status,
	peppol_id, invoice_email, created_at`

func scanCompany(row rowScanner) (domain.Company, error) {
	var (
		c     domain.Company
		email sql.NullString
	)
	err := row.Scan(&c.CompanyID, &c.Name, &c.VATNumber, &c.Address, &c.City, &c.Country, &c.Status,
		&c.PeppolID, &email, &c.CreatedAt)
	if err != nil {
		return domain.Company{}, err
	}
	c.InvoiceEmail = stringPtr(email)
	return c, nil
}

func (s *Store) ListCompanies(ctx context.Context, scope policy.Scope) ([]domain.Company, error) {
	where, args := scopeClause(scope, nil, "company_id")
	rows, err := s.db.QueryContext(ctx, `SELECT `+companyColumns+` FROM companies`+where+` ORDER BY company_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]domain.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (s *Store) GetCompany(ctx context.Context, id int64) (domain.Company, error) {
	c, err := scanCompany(s.db.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE company_id = $1`, id))
	if err != nil {
		return domain.Company{}, dberr.Translate(err)
	}
	return c, nil
}

func (s *Store) InsertCompany(ctx context.Context, in domain.CompanyInput) (int64, error) {
	const q = `INSERT INTO companies (name, vat_number, address, city, country, status, peppol_id, invoice_email)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	             RETURNING company_id`
	return insertReturningID(ctx, s.db, q, in.Name, in.VATNumber, in.Address, in.City, in.Country,
		in.Status, in.PeppolID, nullString(in.InvoiceEmail))
}

func (s *Store) UpdateCompany(ctx context.Context, id int64, in domain.CompanyInput) (int64, error) {
	const q = `UPDATE companies
	              SET name = $2, vat_number = $3, address = $4, city = $5, country = $6,
	                  status = $7, peppol_id = $8, invoice_email = $9
	            WHERE company_id = $1`
	return rowsAffected(s.db.ExecContext(ctx, q, id, in.Name, in.VATNumber, in.Address, in.City,
		in.Country, in.Status, in.PeppolID, nullString(in.InvoiceEmail)))
}

func (s *Store) DeleteCompany(ctx context.Context, id int64) (int64, error) {
	return rowsAffected(s.db.ExecContext(ctx, `DELETE FROM companies WHERE company_id = $1`, id))
}
