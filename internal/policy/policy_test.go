package policy

import (
	"context"
	"errors"
	"testing"

	"lotmarket/internal/apperr"
	"lotmarket/internal/domain"

	"github.com/stretchr/testify/require"
)

type companyMap map[int64]int64

func (m companyMap) CompanyIDOf(_ context.Context, userID int64) (int64, bool, error) {
	id, ok := m[userID]
	return id, ok, nil
}

type failingResolver struct{}

func (failingResolver) CompanyIDOf(context.Context, int64) (int64, bool, error) {
	return 0, false, errors.New("db down")
}

func user(id int64, roles ...domain.Role) domain.Session {
	if len(roles) == 0 {
		roles = []domain.Role{domain.RoleUser}
	}
	return domain.Session{ID: id, Roles: roles}
}

func TestAuthorize_OwnershipTable(t *testing.T) {
	engine := New(companyMap{1: 10, 2: 20})
	ctx := context.Background()

	bid := domain.Bid{BidID: 1, BidderID: 1}
	contract := domain.Contract{ContractID: 1, ContractInput: domain.ContractInput{ProviderID: 1, RequesterID: 2}}
	invoice := domain.Invoice{InvoiceID: 1, Contract: &contract}
	review := domain.Review{ReviewID: 1, ReviewInput: domain.ReviewInput{ReviewerID: 2, ReviewedUserID: 3}}
	company := domain.Company{CompanyID: 10}

	tests := []struct {
		name    string
		session domain.Session
		kind    domain.Kind
		rec     any
		want    Decision
	}{
		{"bid_owner", user(1), domain.KindBid, bid, Allowed},
		{"bid_stranger", user(2), domain.KindBid, bid, NotFound},
		{"bid_admin", user(9, domain.RoleAdmin), domain.KindBid, bid, Allowed},
		{"bid_missing", user(1), domain.KindBid, nil, NotFound},
		{"bid_missing_admin", user(9, domain.RoleAdmin), domain.KindBid, nil, NotFound},
		{"contract_provider", user(1), domain.KindContract, contract, Allowed},
		{"contract_requester", user(2), domain.KindContract, contract, Allowed},
		{"contract_stranger", user(3, domain.RoleProvider), domain.KindContract, contract, NotFound},
		{"invoice_provider", user(1), domain.KindInvoice, invoice, Allowed},
		{"invoice_requester", user(2), domain.KindInvoice, invoice, Allowed},
		{"invoice_stranger", user(3), domain.KindInvoice, invoice, NotFound},
		{"invoice_without_contract", user(1), domain.KindInvoice, domain.Invoice{InvoiceID: 2}, NotFound},
		{"review_reviewer", user(2), domain.KindReview, review, Allowed},
		{"review_reviewed", user(3), domain.KindReview, review, Allowed},
		{"review_stranger", user(1), domain.KindReview, review, NotFound},
		{"company_member", user(1), domain.KindCompany, company, Allowed},
		{"company_other_member", user(2), domain.KindCompany, company, NotFound},
		{"company_no_company", user(5), domain.KindCompany, company, NotFound},
		{"company_admin", user(5, domain.RoleAdmin), domain.KindCompany, company, Allowed},
		{"pointer_record", user(1), domain.KindBid, &bid, Allowed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := engine.Authorize(ctx, tc.session, tc.kind, tc.rec)
			require.NoError(t, err)
			require.Equal(t, tc.want, got, "decision %s", got)
		})
	}
}

// Non-owners never learn more than NotFound for any private kind.
func TestAuthorize_VisibilitySymmetry(t *testing.T) {
	engine := New(companyMap{})
	ctx := context.Background()
	records := map[domain.Kind]Owned{
		domain.KindBid:      domain.Bid{BidderID: 100},
		domain.KindContract: domain.Contract{ContractInput: domain.ContractInput{ProviderID: 100, RequesterID: 101}},
		domain.KindReview:   domain.Review{ReviewInput: domain.ReviewInput{ReviewerID: 100, ReviewedUserID: 101}},
	}
	for kind, rec := range records {
		for callerID := int64(1); callerID <= 110; callerID++ {
			got, err := engine.Authorize(ctx, user(callerID, domain.RoleUser, domain.RoleProvider), kind, rec)
			require.NoError(t, err)
			isOwner := false
			for _, id := range rec.OwnerIDs() {
				isOwner = isOwner || id == callerID
			}
			if isOwner {
				require.Equal(t, Allowed, got, "%s caller %d", kind, callerID)
			} else {
				require.Equal(t, NotFound, got, "%s caller %d", kind, callerID)
			}
		}
	}
}

func TestVisibleFilter(t *testing.T) {
	engine := New(companyMap{1: 10})
	ctx := context.Background()

	scope, err := engine.VisibleFilter(ctx, user(1), domain.KindBid)
	require.NoError(t, err)
	require.False(t, scope.Unrestricted)
	require.True(t, scope.Matches(domain.Bid{BidderID: 1}))
	require.False(t, scope.Matches(domain.Bid{BidderID: 2}))

	scope, err = engine.VisibleFilter(ctx, user(1, domain.RoleAdmin), domain.KindBid)
	require.NoError(t, err)
	require.True(t, scope.Unrestricted)
	require.True(t, scope.Matches(domain.Bid{BidderID: 2}))

	scope, err = engine.VisibleFilter(ctx, user(1), domain.KindCompany)
	require.NoError(t, err)
	require.Equal(t, int64(10), scope.CompanyID)
	require.True(t, scope.Matches(domain.Company{CompanyID: 10}))
	require.False(t, scope.Matches(domain.Company{CompanyID: 11}))

	scope, err = engine.VisibleFilter(ctx, user(2), domain.KindCompany)
	require.NoError(t, err)
	require.True(t, scope.Empty)
	require.False(t, scope.Matches(domain.Company{CompanyID: 10}))

	scope, err = engine.VisibleFilter(ctx, user(2), domain.KindLot)
	require.NoError(t, err)
	require.True(t, scope.Unrestricted)

	_, err = engine.VisibleFilter(ctx, user(2), domain.Kind("spaceship"))
	require.Error(t, err)
}

func TestVisibleFilter_ResolverError(t *testing.T) {
	engine := New(failingResolver{})
	_, err := engine.VisibleFilter(context.Background(), user(1), domain.KindCompany)
	require.Error(t, err)

	// admins never need the lookup
	_, err = engine.VisibleFilter(context.Background(), user(1, domain.RoleAdmin), domain.KindCompany)
	require.NoError(t, err)
}

func TestRequireRole(t *testing.T) {
	require.Equal(t, Allowed, RequireRole(user(1, domain.RoleProvider), domain.RoleAdmin, domain.RoleProvider))
	require.Equal(t, Allowed, RequireRole(user(1, domain.RoleAdmin), domain.RoleProvider))
	require.Equal(t, Forbidden, RequireRole(user(1), domain.RoleProvider))
}

func TestDecisionErr(t *testing.T) {
	require.NoError(t, Allowed.Err("bid", 1))
	require.ErrorIs(t, NotFound.Err("bid", 1), apperr.ErrNotFound)
	require.ErrorIs(t, Forbidden.Err("bid", 1), apperr.ErrForbidden)
}
