package apihandler

import (
	"net/http"

	"lotmarket/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// LotBidBody is a bid on the lot named in the path.
type LotBidBody struct {
	AuctionID *int64          `json:"auction_id"`
	Amount    decimal.Decimal `json:"amount"`
}

func (h *Handler) placeLotBid(c *gin.Context) {
	s, err := sessionOf(c)
	if err != nil {
		writeError(c, err)
		return
	}
	lotID, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	var body LotBidBody
	if err := bindJSON(c, &body); err != nil {
		writeError(c, err)
		return
	}
	bid, err := h.svc.Bids.PlaceBid(c.Request.Context(), s, domain.PlaceBidInput{
		LotID:     lotID,
		AuctionID: body.AuctionID,
		Amount:    body.Amount,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bid)
}
