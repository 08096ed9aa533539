// Package lotevents keeps the Redis snapshot of each lot's current bid and
// publishes lot events to the websocket fan-out.
package lotevents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lotmarket/internal/domain"
	"lotmarket/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	FnBidAccepted  = "lot_bid_accepted"
	FnSnapshotSync = "lot_snapshot_sync"

	EventBid    = "bid"
	EventStatus = "status"
)

func SnapshotKey(lotID int64) string { return fmt.Sprintf("lot:%d", lotID) }

func ChannelKey(lotID int64) string { return fmt.Sprintf("lot:%d:events", lotID) }

// Event is the payload published on a lot's events channel.
type Event struct {
	Event  string           `json:"event"`
	LotID  int64            `json:"lot_id"`
	Bid    *domain.BidView  `json:"bid,omitempty"`
	Status domain.LotStatus `json:"status,omitempty"`
}

// Snapshot is the cached state of a lot. BidID is zero when the lot has no
// bids yet.
type Snapshot struct {
	LotID    int64            `json:"lot_id"`
	Status   domain.LotStatus `json:"status,omitempty"`
	BidID    int64            `json:"bid_id,omitempty"`
	Amount   decimal.Decimal  `json:"amount"`
	BidderID int64            `json:"bidder_id,omitempty"`
	BidTime  *time.Time       `json:"bid_time,omitempty"`
}

type Publisher struct {
	rdc redis.Cmdable
}

func NewPublisher(rdc redis.Cmdable) *Publisher { return &Publisher{rdc: rdc} }

func bidArgs(b *domain.Bid) []any {
	if b == nil {
		return []any{"0", "", "", ""}
	}
	return []any{
		strconv.FormatInt(b.BidID, 10),
		b.Amount.StringFixed(2),
		strconv.FormatInt(b.BidderID, 10),
		b.BidTime.UTC().Format(time.RFC3339Nano),
	}
}

// PublishBid records an accepted bid in the lot's snapshot and publishes it.
// A bid older than the stored one is ignored.
func (p *Publisher) PublishBid(ctx context.Context, b domain.BidView) error {
	payload, err := json.Marshal(Event{Event: EventBid, LotID: b.LotID, Bid: &b})
	if err != nil {
		return err
	}
	args := append([]any{strconv.FormatInt(b.LotID, 10)}, bidArgs(&b.Bid)...)
	args = append(args, string(payload))

	applied, err := p.rdc.FCall(ctx, FnBidAccepted, []string{SnapshotKey(b.LotID), ChannelKey(b.LotID)}, args...).Int()
	switch {
	case err != nil:
		metrics.ObserveLotFeedPublish(metrics.PublishError)
		return fmt.Errorf("publish bid %d: %w", b.BidID, err)
	case applied == 0:
		metrics.ObserveLotFeedPublish(metrics.PublishStale)
	default:
		metrics.ObserveLotFeedPublish(metrics.PublishOK)
	}
	return nil
}

// SyncLot writes the lot's status and last bid into its snapshot. It reports
// whether the snapshot changed; a status change is also published.
func (p *Publisher) SyncLot(ctx context.Context, l domain.Lot, last *domain.Bid) (bool, error) {
	payload, err := json.Marshal(Event{Event: EventStatus, LotID: l.LotID, Status: l.Status})
	if err != nil {
		return false, err
	}
	args := []any{strconv.FormatInt(l.LotID, 10), string(l.Status)}
	args = append(args, bidArgs(last)...)
	args = append(args, string(payload))

	changed, err := p.rdc.FCall(ctx, FnSnapshotSync, []string{SnapshotKey(l.LotID), ChannelKey(l.LotID)}, args...).Int()
	if err != nil {
		return false, fmt.Errorf("sync lot %d: %w", l.LotID, err)
	}
	return changed == 1, nil
}

// ReadSnapshot returns the cached state of a lot, or false when Redis holds
// none.
func ReadSnapshot(ctx context.Context, rdc redis.Cmdable, lotID int64) (Snapshot, bool, error) {
	h, err := rdc.HGetAll(ctx, SnapshotKey(lotID)).Result()
	if err != nil {
		return Snapshot{}, false, err
	}
	if len(h) == 0 {
		return Snapshot{}, false, nil
	}
	snap, err := parseSnapshot(h)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("lot %d snapshot: %w", lotID, err)
	}
	return snap, true, nil
}

func parseSnapshot(h map[string]string) (Snapshot, error) {
	var (
		s   Snapshot
		err error
	)
	if s.LotID, err = strconv.ParseInt(h["lot_id"], 10, 64); err != nil {
		return s, errors.New("bad lot_id")
	}
	s.Status = domain.LotStatus(h["status"])
	if v := h["bid_id"]; v != "" && v != "0" {
		if s.BidID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return s, errors.New("bad bid_id")
		}
		if s.Amount, err = decimal.NewFromString(h["amount"]); err != nil {
			return s, errors.New("bad amount")
		}
		if s.BidderID, err = strconv.ParseInt(h["bidder_id"], 10, 64); err != nil {
			return s, errors.New("bad bidder_id")
		}
		t, err := time.Parse(time.RFC3339Nano, h["bid_time"])
		if err != nil {
			return s, errors.New("bad bid_time")
		}
		s.BidTime = &t
	}
	return s, nil
}

// LotIDFromChannel parses the lot id out of a "lot:<id>:events" channel.
func LotIDFromChannel(channel string) (int64, bool) {
	rest, ok := strings.CutPrefix(channel, "lot:")
	if !ok {
		return 0, false
	}
	rest, ok = strings.CutSuffix(rest, ":events")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
