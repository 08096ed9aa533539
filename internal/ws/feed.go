package ws

import (
	"context"

	"lotmarket/internal/redis/lotevents"

	"github.com/redis/go-redis/v9"
)

// Feed is the source of lot events and cached lot snapshots.
type Feed interface {
	// Follow calls deliver with every event published for the lot until ctx
	// is done.
	Follow(ctx context.Context, lotID int64, deliver func(payload []byte))
	Snapshot(ctx context.Context, lotID int64) (lotevents.Snapshot, bool, error)
}

type redisFeed struct {
	rdb *redis.Client
}

func NewRedisFeed(rdb *redis.Client) Feed { return &redisFeed{rdb: rdb} }

func (f *redisFeed) Follow(ctx context.Context, lotID int64, deliver func([]byte)) {
	ps := f.rdb.Subscribe(ctx, lotevents.ChannelKey(lotID))
	defer ps.Close()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok { // Redis connection closed.
				return
			}
			if id, ok := lotevents.LotIDFromChannel(m.Channel); !ok || id != lotID {
				continue
			}
			deliver([]byte(m.Payload))
		}
	}
}

func (f *redisFeed) Snapshot(ctx context.Context, lotID int64) (lotevents.Snapshot, bool, error) {
	return lotevents.ReadSnapshot(ctx, f.rdb, lotID)
}
