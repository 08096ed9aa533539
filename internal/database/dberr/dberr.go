// Package dberr maps Postgres constraint violations onto domain errors.
package dberr

import (
	"database/sql"
	"errors"
	"strings"

	"lotmarket/internal/apperr"
	"lotmarket/internal/store"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
)

// unique constraint name -> field reported to the client
var uniqueFields = map[string]string{
	"users_username_key":          "username",
	"users_email_key":             "email",
	"companies_name_key":          "name",
	"companies_vat_number_key":    "vatNumber",
	"companies_peppol_id_key":     "peppolId",
	"companies_invoice_email_key": "invoiceEmail",
}

// foreign key column -> resource that does not exist
var foreignKeyResources = []struct{ column, resource string }{
	// longest first: reviewed_user_id contains user_id
	{"reviewed_user_id", "user"},
	{"reviewer_id", "user"},
	{"requester_id", "user"},
	{"provider_id", "user"},
	{"bidder_id", "user"},
	{"winner_id", "user"},
	{"user_id", "user"},
	{"auction_id", "auction"},
	{"company_id", "company"},
	{"contract_id", "contract"},
	{"invoice_id", "invoice"},
	{"lot_id", "lot"},
	{"bid_id", "bid"},
	{"review_id", "review"},
}

// Translate returns a domain error for known storage failures and err
// unchanged otherwise.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		field, ok := uniqueFields[pgErr.ConstraintName]
		if !ok {
			return &apperr.Error{Kind: apperr.ErrConflict, Reason: "this item already exists", Err: err}
		}
		return &apperr.Error{Kind: apperr.ErrConflict, Field: field, Reason: "already in use", Err: err}
	case codeForeignKeyViolation:
		haystack := pgErr.ConstraintName + " " + pgErr.Detail
		for _, fk := range foreignKeyResources {
			if strings.Contains(haystack, fk.column) {
				return &apperr.Error{Kind: apperr.ErrNotFound, Resource: fk.resource, Field: fk.column, Err: err}
			}
		}
	}
	return err
}

// IsRetriable reports whether a transaction failed only because of
// contention and may be retried unchanged.
func IsRetriable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	}
	return false
}

// IsTimeout reports a statement cancelled by statement_timeout or the
// client context.
func IsTimeout(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeQueryCanceled
}
