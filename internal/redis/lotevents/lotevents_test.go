package lotevents

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"lotmarket/internal/domain"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bidTime = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func sampleBid() domain.BidView {
	return domain.BidView{
		Bid: domain.Bid{
			BidID: 9, LotID: 4, AuctionID: 2, BidderID: 7,
			Amount: decimal.RequireFromString("150.5"), BidTime: bidTime,
		},
		Bidder: domain.PublicUser{UserID: 7, Username: "bob"},
	}
}

func TestPublishBid(t *testing.T) {
	rc, mock := redismock.NewClientMock()
	p := NewPublisher(rc)
	b := sampleBid()

	payload, err := json.Marshal(Event{Event: EventBid, LotID: 4, Bid: &b})
	require.NoError(t, err)
	keys := []string{"lot:4", "lot:4:events"}
	args := []any{"4", "9", "150.50", "7", "2026-03-01T09:30:00Z", string(payload)}

	mock.ExpectFCall(FnBidAccepted, keys, args...).SetVal(int64(1))
	require.NoError(t, p.PublishBid(context.Background(), b))

	// an older bid is not an error
	mock.ExpectFCall(FnBidAccepted, keys, args...).SetVal(int64(0))
	require.NoError(t, p.PublishBid(context.Background(), b))

	mock.ExpectFCall(FnBidAccepted, keys, args...).SetErr(errors.New("READONLY"))
	require.ErrorContains(t, p.PublishBid(context.Background(), b), "publish bid 9")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncLot(t *testing.T) {
	rc, mock := redismock.NewClientMock()
	p := NewPublisher(rc)
	l := domain.Lot{LotID: 4}
	l.Status = domain.LotClosed
	payload, err := json.Marshal(Event{Event: EventStatus, LotID: 4, Status: domain.LotClosed})
	require.NoError(t, err)
	keys := []string{"lot:4", "lot:4:events"}

	mock.ExpectFCall(FnSnapshotSync, keys, "4", "closed", "0", "", "", "", string(payload)).SetVal(int64(1))
	changed, err := p.SyncLot(context.Background(), l, nil)
	require.NoError(t, err)
	assert.True(t, changed)

	last := sampleBid().Bid
	mock.ExpectFCall(FnSnapshotSync, keys, "4", "closed", "9", "150.50", "7", "2026-03-01T09:30:00Z", string(payload)).SetVal(int64(0))
	changed, err = p.SyncLot(context.Background(), l, &last)
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadSnapshot(t *testing.T) {
	rc, mock := redismock.NewClientMock()

	mock.ExpectHGetAll("lot:4").SetVal(map[string]string{})
	_, ok, err := ReadSnapshot(context.Background(), rc, 4)
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectHGetAll("lot:4").SetVal(map[string]string{
		"lot_id": "4", "status": "open", "bid_id": "9", "amount": "150.50",
		"bidder_id": "7", "bid_time": "2026-03-01T09:30:00Z",
	})
	snap, ok, err := ReadSnapshot(context.Background(), rc, 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(9), snap.BidID)
	assert.True(t, decimal.RequireFromString("150.50").Equal(snap.Amount))
	require.NotNil(t, snap.BidTime)
	assert.True(t, bidTime.Equal(*snap.BidTime))

	mock.ExpectHGetAll("lot:4").SetVal(map[string]string{"lot_id": "4", "status": "open"})
	snap, ok, err = ReadSnapshot(context.Background(), rc, 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Zero(t, snap.BidID)
	assert.Nil(t, snap.BidTime)

	mock.ExpectHGetAll("lot:4").SetVal(map[string]string{"lot_id": "4", "bid_id": "x"})
	_, _, err = ReadSnapshot(context.Background(), rc, 4)
	require.ErrorContains(t, err, "bad bid_id")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLotIDFromChannel(t *testing.T) {
	tests := []struct {
		channel string
		id      int64
		ok      bool
	}{
		{"lot:12:events", 12, true},
		{ChannelKey(3), 3, true},
		{"lot:12", 0, false},
		{"auc:12:events", 0, false},
		{"lot:x:events", 0, false},
		{"lot:0:events", 0, false},
	}
	for _, tt := range tests {
		id, ok := LotIDFromChannel(tt.channel)
		assert.Equal(t, tt.ok, ok, tt.channel)
		assert.Equal(t, tt.id, id, tt.channel)
	}
}
