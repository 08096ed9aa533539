// Package store declares the persistence contract used by the services.
// Lookups return ErrNotFound for missing rows; Update and Delete report the
// number of rows affected and leave the NotFound decision to the caller.
package store

import (
	"context"
	"errors"

	"lotmarket/internal/domain"
	"lotmarket/internal/policy"
)

var ErrNotFound = errors.New("record not found")

// ErrLockTimeout is returned when a lot lock could not be acquired in time.
// The transaction may be retried unchanged.
var ErrLockTimeout = errors.New("lock not available")

type AuctionStore interface {
	ListAuctions(ctx context.Context) ([]domain.Auction, error)
	GetAuction(ctx context.Context, id int64) (domain.Auction, error)
	InsertAuction(ctx context.Context, in domain.AuctionInput) (int64, error)
	UpdateAuction(ctx context.Context, id int64, in domain.AuctionInput) (int64, error)
	DeleteAuction(ctx context.Context, id int64) (int64, error)
}

type LotStore interface {
	ListLots(ctx context.Context) ([]domain.Lot, error)
	ListOpenLots(ctx context.Context) ([]domain.Lot, error)
	GetLot(ctx context.Context, id int64) (domain.Lot, error)
	InsertLot(ctx context.Context, in domain.LotInput) (int64, error)
	UpdateLot(ctx context.Context, id int64, in domain.LotInput) (int64, error)
	DeleteLot(ctx context.Context, id int64) (int64, error)
}

// BidTx is the view of the store inside a bid placement transaction.
// LockLot serialises placements on the same lot until the transaction ends.
type BidTx interface {
	LockLot(ctx context.Context, lotID int64) (domain.Lot, error)
	GetAuction(ctx context.Context, id int64) (domain.Auction, error)
	// LastBid is the most recent bid on the lot by bid time, ties broken by
	// the higher bid id. ok is false when the lot has no bids.
	LastBid(ctx context.Context, lotID int64) (bid domain.Bid, ok bool, err error)
	InsertBid(ctx context.Context, b domain.Bid) (int64, error)
}

type BidStore interface {
	// PlaceBidTx runs fn in one transaction, committing only when fn returns
	// nil. Nothing fn wrote survives an error or a cancelled context.
	PlaceBidTx(ctx context.Context, fn func(tx BidTx) error) error

	ListBids(ctx context.Context, scope policy.Scope) ([]domain.BidView, error)
	ListBidsByAuction(ctx context.Context, auctionID int64) ([]domain.BidView, error)
	ListBidsByLot(ctx context.Context, lotID int64) ([]domain.BidView, error)
	GetBid(ctx context.Context, id int64) (domain.BidView, error)
	// LastBidByLot is the same ordering as BidTx.LastBid without locking.
	LastBidByLot(ctx context.Context, lotID int64) (domain.Bid, bool, error)
	UpdateBid(ctx context.Context, id int64, in domain.BidCorrection) (int64, error)
	DeleteBid(ctx context.Context, id int64) (int64, error)
}

type ContractStore interface {
	ListContracts(ctx context.Context, scope policy.Scope) ([]domain.Contract, error)
	GetContract(ctx context.Context, id int64) (domain.Contract, error)
	InsertContract(ctx context.Context, in domain.ContractInput) (int64, error)
	UpdateContract(ctx context.Context, id int64, in domain.ContractInput) (int64, error)
	DeleteContract(ctx context.Context, id int64) (int64, error)
}

// InvoiceStore always returns invoices with their contract joined.
type InvoiceStore interface {
	ListInvoices(ctx context.Context, scope policy.Scope) ([]domain.Invoice, error)
	GetInvoice(ctx context.Context, id int64) (domain.Invoice, error)
	InsertInvoice(ctx context.Context, in domain.InvoiceInput) (int64, error)
	UpdateInvoice(ctx context.Context, id int64, in domain.InvoiceInput) (int64, error)
	DeleteInvoice(ctx context.Context, id int64) (int64, error)
}

type ReviewStore interface {
	ListReviews(ctx context.Context, scope policy.Scope) ([]domain.Review, error)
	GetReview(ctx context.Context, id int64) (domain.Review, error)
	InsertReview(ctx context.Context, in domain.ReviewInput) (int64, error)
	UpdateReview(ctx context.Context, id int64, in domain.ReviewInput) (int64, error)
	DeleteReview(ctx context.Context, id int64) (int64, error)
}

type CompanyStore interface {
	ListCompanies(ctx context.Context, scope policy.Scope) ([]domain.Company, error)
	GetCompany(ctx context.Context, id int64) (domain.Company, error)
	InsertCompany(ctx context.Context, in domain.CompanyInput) (int64, error)
	UpdateCompany(ctx context.Context, id int64, in domain.CompanyInput) (int64, error)
	DeleteCompany(ctx context.Context, id int64) (int64, error)
}

type UserStore interface {
	policy.CompanyResolver
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	InsertUser(ctx context.Context, u domain.User) (int64, error)
	UpdateUser(ctx context.Context, id int64, in domain.UserUpdate) (int64, error)
	DeleteUser(ctx context.Context, id int64) (int64, error)
	ListFavoriteLots(ctx context.Context, userID int64) ([]domain.Lot, error)
	AddFavoriteLot(ctx context.Context, userID, lotID int64) error
	RemoveFavoriteLot(ctx context.Context, userID, lotID int64) (int64, error)
}

// Store is everything the service layer needs.
type Store interface {
	AuctionStore
	LotStore
	BidStore
	ContractStore
	InvoiceStore
	ReviewStore
	CompanyStore
	UserStore
	Close() error
}
