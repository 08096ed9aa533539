package ws

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "lots/bid"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

const (
	EventSnapshot = "lots/snapshot"
	EventBid      = "lots/bid"
	EventError    = "error"
)

// BidRequest is the body for "lots/bid". The lot is the room's.
type BidRequest struct {
	AuctionID *int64          `json:"auction_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
}

// ErrorBody is returned for failures.
type ErrorBody struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Retriable bool   `json:"retriable,omitempty"`
}
