// Package policy decides which records a session may list and act on.
//
// Ownership denials on private records are always reported as NotFound so a
// caller cannot probe for the existence of other users' bids, contracts,
// invoices, reviews or companies. Forbidden is reserved for role guards.
package policy

import (
	"context"
	"fmt"
	"slices"

	"lotmarket/internal/apperr"
	"lotmarket/internal/domain"
)

type Decision int

const (
	Allowed Decision = iota
	NotFound
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// Err converts a denial into the matching apperr value; Allowed yields nil.
func (d Decision) Err(resource string, id any) error {
	switch d {
	case Allowed:
		return nil
	case Forbidden:
		return apperr.Forbidden(fmt.Sprintf("not allowed to act on %s", resource))
	default:
		return apperr.NotFound(resource, id)
	}
}

// Owned is implemented by records visible to their participants.
type Owned interface {
	OwnerIDs() []int64
}

// Member is implemented by records visible to the users attached to them.
type Member interface {
	MemberCompanyID() int64
}

// CompanyResolver looks up the company a user belongs to.
type CompanyResolver interface {
	CompanyIDOf(ctx context.Context, userID int64) (companyID int64, ok bool, err error)
}

// Scope is the list filter for one session and kind. Stores either compile
// it into a query or call Matches per row.
type Scope struct {
	Kind         domain.Kind
	Unrestricted bool
	// Empty means nothing is visible, e.g. a company scope for a user
	// without a company.
	Empty     bool
	UserID    int64
	CompanyID int64
}

func (s Scope) Matches(rec any) bool {
	if s.Unrestricted {
		return true
	}
	if s.Empty {
		return false
	}
	switch r := rec.(type) {
	case Member:
		return s.CompanyID != 0 && r.MemberCompanyID() == s.CompanyID
	case Owned:
		return slices.Contains(r.OwnerIDs(), s.UserID)
	}
	return false
}

type Engine struct {
	companies CompanyResolver
}

func New(companies CompanyResolver) *Engine {
	return &Engine{companies: companies}
}

// VisibleFilter returns the scope used for "list all" queries.
func (e *Engine) VisibleFilter(ctx context.Context, s domain.Session, kind domain.Kind) (Scope, error) {
	scope := Scope{Kind: kind, UserID: s.ID}
	if s.IsAdmin() {
		scope.Unrestricted = true
		return scope, nil
	}
	switch kind {
	case domain.KindBid, domain.KindContract, domain.KindInvoice, domain.KindReview:
		return scope, nil
	case domain.KindCompany:
		companyID, ok, err := e.companies.CompanyIDOf(ctx, s.ID)
		if err != nil {
			return Scope{}, fmt.Errorf("policy: resolve company of user %d: %w", s.ID, err)
		}
		if !ok {
			scope.Empty = true
			return scope, nil
		}
		scope.CompanyID = companyID
		return scope, nil
	case domain.KindAuction, domain.KindLot:
		scope.Unrestricted = true
		return scope, nil
	}
	return Scope{}, fmt.Errorf("policy: no visibility rule for %q", kind)
}

// Authorize decides whether s may read or mutate rec. A nil rec means the
// record does not exist.
func (e *Engine) Authorize(ctx context.Context, s domain.Session, kind domain.Kind, rec any) (Decision, error) {
	if rec == nil {
		return NotFound, nil
	}
	if s.IsAdmin() {
		return Allowed, nil
	}
	scope, err := e.VisibleFilter(ctx, s, kind)
	if err != nil {
		return NotFound, err
	}
	if scope.Matches(rec) {
		return Allowed, nil
	}
	return NotFound, nil
}

// RequireRole passes admins and any session holding one of roles.
func RequireRole(s domain.Session, roles ...domain.Role) Decision {
	if s.IsAdmin() || s.HasAnyRole(roles...) {
		return Allowed
	}
	return Forbidden
}
