package apihandler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"lotmarket/internal/auth"
	"lotmarket/internal/domain"
	"lotmarket/internal/http/middleware"
	"lotmarket/internal/policy"
	"lotmarket/internal/retry"
	"lotmarket/internal/services/auction"
	"lotmarket/internal/services/bidding"
	"lotmarket/internal/services/company"
	"lotmarket/internal/services/contract"
	"lotmarket/internal/services/invoice"
	"lotmarket/internal/services/lot"
	"lotmarket/internal/services/review"
	"lotmarket/internal/services/session"
	"lotmarket/internal/services/user"
	"lotmarket/internal/testfixture"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type api struct {
	t      *testing.T
	fx     *testfixture.Fixture
	tokens *auth.TokenManager
	router *gin.Engine
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fx := testfixture.New(t)
	st := fx.Store
	pe := policy.New(st)
	tm := auth.NewTokenManager("test-secret", "lotmarket", time.Hour)
	sessions := session.NewSessionService(st, tm)

	h := New(Services{
		Auctions: auction.NewAuctionService(st),
		Lots:     lot.NewLotService(st),
		Bids: bidding.NewBiddingService(st, pe, nil, bidding.Config{
			Retry:     retry.Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, BackoffMultiplier: 2},
			TxTimeout: 2 * time.Second,
		}),
		Contracts: contract.NewContractService(st, pe),
		Invoices:  invoice.NewInvoiceService(st, pe),
		Reviews:   review.NewReviewService(st, pe),
		Companies: company.NewCompanyService(st, pe),
		Users:     user.NewUserService(st),
		Sessions:  sessions,
	}, time.Millisecond)

	r := gin.New()
	r.Use(middleware.RequestID())
	public := r.Group("/api")
	authed := r.Group("/api", middleware.Session(sessions))
	h.Register(public, authed)
	return &api{t: t, fx: fx, tokens: tm, router: r}
}

func (a *api) token(s domain.Session) string {
	a.t.Helper()
	tok, err := a.tokens.GenerateToken(domain.User{UserID: s.ID, Roles: s.Roles})
	require.NoError(a.t, err)
	return tok
}

// do sends body as JSON with s's bearer token; a zero session sends none.
func (a *api) do(s domain.Session, method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.ID != 0 {
		req.Header.Set("Authorization", "Bearer "+a.token(s))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRoutesRequireSession(t *testing.T) {
	a := newAPI(t)
	w := a.do(domain.Session{}, http.MethodGet, "/api/lots", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	a := newAPI(t)

	w := a.do(domain.Session{}, http.MethodPost, "/api/users", map[string]any{
		"username": "carol", "email": "carol@example.com", "password": "correct horse", "language": "nl",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	u := decode[domain.User](t, w)
	assert.Equal(t, []domain.Role{domain.RoleUser}, u.Roles)
	assert.NotContains(t, w.Body.String(), "argon2id")

	w = a.do(domain.Session{}, http.MethodPost, "/api/session", map[string]any{
		"email": "carol@example.com", "password": "wrong password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(domain.Session{}, http.MethodPost, "/api/session", map[string]any{
		"email": "carol@example.com", "password": "correct horse",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tok := decode[TokenResponse](t, w).Token

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/users/%d", u.UserID), nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "carol", decode[domain.User](t, rec).Username)
}

func TestPlaceBidOverHTTP(t *testing.T) {
	a := newAPI(t)
	owner := a.fx.User("owner")
	bidder := a.fx.User("bidder")
	lotID := a.fx.Lot(a.fx.Auction(), owner.ID, "500.00")

	w := a.do(bidder, http.MethodPost, fmt.Sprintf("/api/lots/%d/bids", lotID), map[string]any{"amount": "500.00"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	e := decode[ErrorResponse](t, w)
	require.NotNil(t, e.Details)
	assert.Equal(t, "amount", e.Details.Field)

	w = a.do(bidder, http.MethodPost, "/api/bids", map[string]any{"lot_id": lotID, "amount": "150.00"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(bidder, http.MethodPost, fmt.Sprintf("/api/lots/%d/bids", lotID), map[string]any{"amount": "600.00"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bid := decode[domain.BidView](t, w)
	assert.True(t, decimal.RequireFromString("600.00").Equal(bid.Amount))
	assert.Equal(t, "bidder", bid.Bidder.Username)

	w = a.do(owner, http.MethodGet, fmt.Sprintf("/api/lots/%d/bids", lotID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[ListResponse[domain.BidView]](t, w).Items, 1)

	// the bid belongs to bidder only
	w = a.do(owner, http.MethodGet, fmt.Sprintf("/api/bids/%d", bid.BidID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = a.do(bidder, http.MethodGet, fmt.Sprintf("/api/bids/%d", bid.BidID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConcurrentEqualBidsOverHTTP(t *testing.T) {
	a := newAPI(t)
	owner := a.fx.User("owner")
	lotID := a.fx.Lot(a.fx.Auction(), owner.ID, "500.00")

	const n = 10
	bidders := make([]domain.Session, n)
	for i := range bidders {
		bidders[i] = a.fx.User(fmt.Sprintf("bidder%d", i))
	}
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = a.do(bidders[i], http.MethodPost, fmt.Sprintf("/api/lots/%d/bids", lotID), map[string]any{"amount": "700.00"}).Code
		}()
	}
	wg.Wait()

	created := 0
	for _, c := range codes {
		if c == http.StatusCreated {
			created++
			continue
		}
		assert.Contains(t, []int{http.StatusBadRequest, http.StatusConflict}, c)
	}
	assert.Equal(t, 1, created)
}

func TestErrorStatuses(t *testing.T) {
	a := newAPI(t)
	alice := a.fx.User("alice")
	bob := a.fx.User("bob")
	provider := a.fx.User("prov", domain.RoleUser, domain.RoleProvider)
	auctionID := a.fx.Auction()
	contractID := a.fx.Contract(auctionID, provider.ID, alice.ID)

	tests := []struct {
		name   string
		s      domain.Session
		method string
		path   string
		body   any
		status int
	}{
		{"bad id", alice, http.MethodGet, "/api/lots/abc", nil, http.StatusBadRequest},
		{"missing lot", alice, http.MethodGet, "/api/lots/999", nil, http.StatusNotFound},
		{"stranger contract", bob, http.MethodGet, fmt.Sprintf("/api/contracts/%d", contractID), nil, http.StatusNotFound},
		{"participant contract", alice, http.MethodGet, fmt.Sprintf("/api/contracts/%d", contractID), nil, http.StatusOK},
		{"user list needs admin", alice, http.MethodGet, "/api/users", nil, http.StatusForbidden},
		{"auction update needs admin", alice, http.MethodPut, fmt.Sprintf("/api/auctions/%d", auctionID), testfixture.AuctionInput(), http.StatusForbidden},
		{"contract create needs provider", alice, http.MethodPost, "/api/contracts", testfixture.ContractInput(auctionID, provider.ID, alice.ID), http.StatusForbidden},
		{"malformed body", alice, http.MethodPost, "/api/auctions", "not an object", http.StatusBadRequest},
		{"invoice create", provider, http.MethodPost, "/api/invoices", testfixture.InvoiceInput(contractID), http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(tt.s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestListWrapsItems(t *testing.T) {
	a := newAPI(t)
	alice := a.fx.User("alice")

	w := a.do(alice, http.MethodGet, "/api/contracts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[]}`, w.Body.String())
}

func TestLotLifecycle(t *testing.T) {
	a := newAPI(t)
	alice := a.fx.User("alice")
	bob := a.fx.User("bob")
	auctionID := a.fx.Auction()

	w := a.do(alice, http.MethodPost, "/api/lots", testfixture.LotInput(auctionID, 0, "100.00"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	l := decode[domain.Lot](t, w)
	assert.Equal(t, alice.ID, l.RequesterID)

	path := fmt.Sprintf("/api/lots/%d", l.LotID)
	assert.Equal(t, http.StatusForbidden, a.do(bob, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNoContent, a.do(alice, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(alice, http.MethodGet, path, nil).Code)
}

func TestFavoriteLots(t *testing.T) {
	a := newAPI(t)
	alice := a.fx.User("alice")
	bob := a.fx.User("bob")
	lotID := a.fx.Lot(a.fx.Auction(), bob.ID, "10.00")
	path := fmt.Sprintf("/api/users/%d/favoritelots", alice.ID)

	require.Equal(t, http.StatusNoContent, a.do(alice, http.MethodPost, fmt.Sprintf("%s/%d", path, lotID), nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(alice, http.MethodPut, fmt.Sprintf("%s/%d", path, lotID), nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(bob, http.MethodGet, path, nil).Code)

	w := a.do(alice, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[ListResponse[domain.Lot]](t, w).Items, 1)

	require.Equal(t, http.StatusNoContent, a.do(alice, http.MethodDelete, fmt.Sprintf("%s/%d", path, lotID), nil).Code)
	w = a.do(alice, http.MethodGet, path, nil)
	assert.Empty(t, decode[ListResponse[domain.Lot]](t, w).Items)
}
