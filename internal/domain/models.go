package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Records are an input shape plus the fields the store generates.

type AuctionInput struct {
	RequestID int64         `json:"request_id" validate:"gt=0"`
	StartTime time.Time     `json:"start_time" validate:"required"`
	EndTime   time.Time     `json:"end_time"   validate:"required,gtfield=StartTime"`
	Status    AuctionStatus `json:"status"     validate:"oneof=open closed cancelled"`
}

type Auction struct {
	AuctionID int64 `json:"auction_id"`
	AuctionInput
	CreatedAt time.Time `json:"created_at"`
}

type LotInput struct {
	AuctionID        int64               `json:"auction_id"   validate:"gt=0"`
	RequestID        int64               `json:"request_id"   validate:"gte=0"`
	RequesterID      int64               `json:"requester_id" validate:"gte=0"`
	WinnerID         *int64              `json:"winner_id,omitempty"`
	Title            string              `json:"title"        validate:"required,max=255"`
	Description      string              `json:"description"`
	Category         string              `json:"category"     validate:"required,max=100"`
	StartTime        time.Time           `json:"start_time"   validate:"required"`
	EndTime          time.Time           `json:"end_time"     validate:"required,gtfield=StartTime"`
	Status           LotStatus           `json:"status"       validate:"oneof=open closed cancelled"`
	StartBid         decimal.Decimal     `json:"start_bid"`
	ReservedPrice    decimal.Decimal     `json:"reserved_price"`
	BuyPrice         decimal.NullDecimal `json:"buy_price"`
	IsReversed       bool                `json:"is_reversed"`
	CanBidHigher     bool                `json:"can_bid_higher"`
	ExtraInformation *string             `json:"extra_information,omitempty"`
}

type Lot struct {
	LotID int64 `json:"lot_id"`
	LotInput
	CreatedAt time.Time `json:"created_at"`
}

// LotDetail is a lot together with its bid history.
type LotDetail struct {
	Lot
	Bids []BidView `json:"bids"`
}

type Bid struct {
	BidID     int64           `json:"bid_id"`
	LotID     int64           `json:"lot_id"`
	AuctionID int64           `json:"auction_id"`
	BidderID  int64           `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	BidTime   time.Time       `json:"bid_time"`
}

func (b Bid) OwnerIDs() []int64 { return []int64{b.BidderID} }

// BidView is a bid joined with its bidder and auction.
type BidView struct {
	Bid
	Bidder  PublicUser `json:"bidder"`
	Auction *Auction   `json:"auction,omitempty"`
}

// PlaceBidInput is what a bidder submits. AuctionID is only a hint; the lot's
// auction is used when it is nil.
type PlaceBidInput struct {
	LotID     int64           `json:"lot_id"     validate:"gt=0"`
	AuctionID *int64          `json:"auction_id" validate:"omitempty,gt=0"`
	Amount    decimal.Decimal `json:"amount"`
}

// BidCorrection replaces a bid's fields directly. Admin only.
type BidCorrection struct {
	LotID     int64           `json:"lot_id"     validate:"gt=0"`
	AuctionID int64           `json:"auction_id" validate:"gt=0"`
	Amount    decimal.Decimal `json:"amount"`
}

type ContractInput struct {
	AuctionID   int64           `json:"auction_id"   validate:"gt=0"`
	ProviderID  int64           `json:"provider_id"  validate:"gt=0"`
	RequesterID int64           `json:"requester_id" validate:"gt=0"`
	AgreedPrice decimal.Decimal `json:"agreed_price"`
	StartDate   time.Time       `json:"start_date"   validate:"required"`
	EndDate     time.Time       `json:"end_date"     validate:"required,gtefield=StartDate"`
	Status      ContractStatus  `json:"status"       validate:"oneof=pending active completed cancelled"`
}

type Contract struct {
	ContractID int64 `json:"contract_id"`
	ContractInput
}

func (c Contract) OwnerIDs() []int64 { return []int64{c.ProviderID, c.RequesterID} }

type InvoiceInput struct {
	ContractID int64           `json:"contract_id" validate:"gt=0"`
	Amount     decimal.Decimal `json:"amount"`
	IssueDate  time.Time       `json:"issue_date"  validate:"required"`
	DueDate    time.Time       `json:"due_date"    validate:"required,gtefield=IssueDate"`
	Status     InvoiceStatus   `json:"status"      validate:"oneof=unpaid paid overdue"`
}

type Invoice struct {
	InvoiceID int64 `json:"invoice_id"`
	InvoiceInput
	Contract *Contract `json:"contract,omitempty"`
}

// OwnerIDs is derived from the joined contract; an invoice loaded without
// its contract has no owners.
func (i Invoice) OwnerIDs() []int64 {
	if i.Contract == nil {
		return nil
	}
	return i.Contract.OwnerIDs()
}

type ReviewInput struct {
	ContractID     int64   `json:"contract_id"      validate:"gt=0"`
	ReviewerID     int64   `json:"reviewer_id"      validate:"gte=0"`
	ReviewedUserID int64   `json:"reviewed_user_id" validate:"gt=0"`
	Rating         int     `json:"rating"           validate:"min=1,max=5"`
	Comment        *string `json:"comment,omitempty"`
}

type Review struct {
	ReviewID int64 `json:"review_id"`
	ReviewInput
	CreatedAt time.Time `json:"created_at"`
}

func (r Review) OwnerIDs() []int64 { return []int64{r.ReviewerID, r.ReviewedUserID} }

type CompanyInput struct {
	Name         string        `json:"name"          validate:"required,max=255"`
	VATNumber    string        `json:"vat_number"    validate:"required,max=32"`
	Address      string        `json:"address"       validate:"required,max=255"`
	City         string        `json:"city"          validate:"required,max=100"`
	Country      string        `json:"country"       validate:"required,len=2"`
	Status       CompanyStatus `json:"status"        validate:"oneof=active inactive"`
	PeppolID     string        `json:"peppol_id"     validate:"required,max=64"`
	InvoiceEmail *string       `json:"invoice_email,omitempty" validate:"omitempty,email"`
}

type Company struct {
	CompanyID int64 `json:"company_id"`
	CompanyInput
	CreatedAt time.Time `json:"created_at"`
}

func (c Company) MemberCompanyID() int64 { return c.CompanyID }

type User struct {
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []Role    `json:"roles"`
	IsProvider   bool      `json:"is_provider"`
	Rating       *int      `json:"rating,omitempty"`
	CompanyID    *int64    `json:"company_id,omitempty"`
	Language     string    `json:"language"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u User) Public() PublicUser { return PublicUser{UserID: u.UserID, Username: u.Username} }

func (u User) Session() Session { return Session{ID: u.UserID, Roles: u.Roles} }

type PublicUser struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// UserUpdate is the part of a user its owner may change.
type UserUpdate struct {
	Username string `json:"username" validate:"required,max=100"`
	Email    string `json:"email"    validate:"required,email,max=255"`
	Language string `json:"language" validate:"required,max=10"`
}

// RegisterInput creates a user and, for providers, their company.
type RegisterInput struct {
	Username   string        `json:"username"   validate:"required,max=100"`
	Email      string        `json:"email"      validate:"required,email,max=255"`
	Password   string        `json:"password"   validate:"required,min=8"`
	IsProvider bool          `json:"is_provider"`
	Language   string        `json:"language"   validate:"required,max=10"`
	Company    *CompanyInput `json:"company,omitempty"`
}
