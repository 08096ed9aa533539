// Package testfixture seeds a memory store for service and handler tests.
package testfixture

import (
	"context"
	"fmt"
	"testing"
	"time"

	"lotmarket/internal/domain"
	"lotmarket/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var Start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type Fixture struct {
	t     *testing.T
	Store *memory.Store
	n     int
}

func New(t *testing.T) *Fixture {
	t.Helper()
	return &Fixture{t: t, Store: memory.New(memory.Options{Now: func() time.Time { return Start }})}
}

// User inserts a user with roles (USER when none) and returns its session.
func (f *Fixture) User(name string, roles ...domain.Role) domain.Session {
	f.t.Helper()
	return f.UserIn(name, nil, roles...)
}

// UserIn is User for a member of companyID.
func (f *Fixture) UserIn(name string, companyID *int64, roles ...domain.Role) domain.Session {
	f.t.Helper()
	if len(roles) == 0 {
		roles = []domain.Role{domain.RoleUser}
	}
	id, err := f.Store.InsertUser(context.Background(), domain.User{
		Username:  name,
		Email:     name + "@example.com",
		Roles:     roles,
		CompanyID: companyID,
		Language:  "en",
	})
	require.NoError(f.t, err)
	return domain.Session{ID: id, Roles: roles}
}

func (f *Fixture) Company(name string) int64 {
	f.t.Helper()
	f.n++
	id, err := f.Store.InsertCompany(context.Background(), domain.CompanyInput{
		Name: name, VATNumber: fmt.Sprintf("BE%08d", f.n), Address: "Main street 1", City: "Ghent",
		Country: "BE", Status: domain.CompanyActive, PeppolID: fmt.Sprintf("0208:%d", f.n),
	})
	require.NoError(f.t, err)
	return id
}

func (f *Fixture) Auction() int64 {
	f.t.Helper()
	id, err := f.Store.InsertAuction(context.Background(), AuctionInput())
	require.NoError(f.t, err)
	return id
}

func AuctionInput() domain.AuctionInput {
	return domain.AuctionInput{RequestID: 1, StartTime: Start, EndTime: Start.Add(24 * time.Hour), Status: domain.AuctionOpen}
}

func LotInput(auctionID, requesterID int64, startBid string) domain.LotInput {
	return domain.LotInput{
		AuctionID: auctionID, RequestID: 1, RequesterID: requesterID,
		Title: "Window cleaning", Description: "Two floors", Category: "services",
		StartTime: Start, EndTime: Start.Add(24 * time.Hour), Status: domain.LotOpen,
		StartBid: decimal.RequireFromString(startBid), CanBidHigher: true,
	}
}

func (f *Fixture) Lot(auctionID, requesterID int64, startBid string) int64 {
	f.t.Helper()
	id, err := f.Store.InsertLot(context.Background(), LotInput(auctionID, requesterID, startBid))
	require.NoError(f.t, err)
	return id
}

func ContractInput(auctionID, providerID, requesterID int64) domain.ContractInput {
	return domain.ContractInput{
		AuctionID: auctionID, ProviderID: providerID, RequesterID: requesterID,
		AgreedPrice: decimal.RequireFromString("700.00"),
		StartDate:   Start, EndDate: Start.Add(30 * 24 * time.Hour), Status: domain.ContractActive,
	}
}

func (f *Fixture) Contract(auctionID, providerID, requesterID int64) int64 {
	f.t.Helper()
	id, err := f.Store.InsertContract(context.Background(), ContractInput(auctionID, providerID, requesterID))
	require.NoError(f.t, err)
	return id
}

func InvoiceInput(contractID int64) domain.InvoiceInput {
	return domain.InvoiceInput{
		ContractID: contractID, Amount: decimal.RequireFromString("350.00"),
		IssueDate: Start, DueDate: Start.Add(14 * 24 * time.Hour), Status: domain.InvoiceUnpaid,
	}
}
