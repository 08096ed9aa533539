package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// subscriptionManager keeps exactly one feed subscription per lot, no
// matter how many websocket clients join the lot's room.
type subscriptionManager struct {
	feed Feed
	hub  *Hub
	mu   sync.Mutex
	subs map[int64]*subEntry
}

type subEntry struct {
	refCnt int
	cancel context.CancelFunc
}

func newSubscriptionManager(feed Feed, hub *Hub) *subscriptionManager {
	return &subscriptionManager{
		feed: feed,
		hub:  hub,
		subs: make(map[int64]*subEntry),
	}
}

// Subscribe ensures the process follows the lot's events; later calls for
// the same lot only increment the ref counter.
func (sm *subscriptionManager) Subscribe(lotID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if e, ok := sm.subs[lotID]; ok {
		e.refCnt++
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sm.subs[lotID] = &subEntry{refCnt: 1, cancel: cancel}

	go sm.feed.Follow(ctx, lotID, func(payload []byte) {
		wrapped, err := wrapFeedEvent(payload)
		if err != nil {
			zap.L().Warn("ws.wrap_event_failed", zap.Int64("lot_id", lotID), zap.Error(err))
			wrapped = payload
		}
		sm.hub.Broadcast(lotID, wrapped)
	})
}

// Unsubscribe decrements the ref counter and stops following the lot when
// the last client leaves the room.
func (sm *subscriptionManager) Unsubscribe(lotID int64) {
	sm.mu.Lock()
	e, ok := sm.subs[lotID]
	if !ok {
		sm.mu.Unlock()
		return
	}
	e.refCnt--
	if e.refCnt > 0 {
		sm.mu.Unlock()
		return
	}
	delete(sm.subs, lotID)
	sm.mu.Unlock()

	e.cancel()
}

func (sm *subscriptionManager) refs(lotID int64) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if e, ok := sm.subs[lotID]; ok {
		return e.refCnt
	}
	return 0
}

// wrapFeedEvent turns
//
//	{"event":"bid","lot_id":4,"bid":{...}}
//
// into
//
//	{"event":"lots/bid","body":{"lot_id":4,"bid":{...}}}
func wrapFeedEvent(payload []byte) ([]byte, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	evt := "unknown"
	if v, ok := raw["event"]; ok {
		_ = json.Unmarshal(v, &evt)
	}
	delete(raw, "event")

	return json.Marshal(outFrame{Event: "lots/" + evt, Body: raw})
}
