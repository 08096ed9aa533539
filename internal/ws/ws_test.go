package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"lotmarket/internal/auth"
	"lotmarket/internal/domain"
	"lotmarket/internal/policy"
	"lotmarket/internal/redis/lotevents"
	"lotmarket/internal/retry"
	"lotmarket/internal/services/bidding"
	"lotmarket/internal/services/lot"
	"lotmarket/internal/services/session"
	"lotmarket/internal/testfixture"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFeed is an in-process Feed; publishing a bid delivers it to followers.
type memFeed struct {
	mu        sync.Mutex
	followers map[int64][]func([]byte)
	snapshots map[int64]lotevents.Snapshot
}

func newMemFeed() *memFeed {
	return &memFeed{followers: map[int64][]func([]byte){}, snapshots: map[int64]lotevents.Snapshot{}}
}

func (f *memFeed) Follow(ctx context.Context, lotID int64, deliver func([]byte)) {
	f.mu.Lock()
	f.followers[lotID] = append(f.followers[lotID], deliver)
	f.mu.Unlock()
	<-ctx.Done()
	f.mu.Lock()
	f.followers[lotID] = nil
	f.mu.Unlock()
}

func (f *memFeed) Snapshot(_ context.Context, lotID int64) (lotevents.Snapshot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snapshots[lotID]
	return s, ok, nil
}

func (f *memFeed) following(lotID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.followers[lotID]) > 0
}

func (f *memFeed) PublishBid(_ context.Context, b domain.BidView) error {
	payload, err := json.Marshal(lotevents.Event{Event: lotevents.EventBid, LotID: b.LotID, Bid: &b})
	if err != nil {
		return err
	}
	f.mu.Lock()
	fns := append([]func([]byte){}, f.followers[b.LotID]...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn(payload)
	}
	return nil
}

type env struct {
	fx     *testfixture.Fixture
	feed   *memFeed
	hub    *Hub
	tokens *auth.TokenManager
	srv    *httptest.Server
	lotID  int64
	alice  domain.Session
	bob    domain.Session
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fx := testfixture.New(t)
	feed := newMemFeed()
	tm := auth.NewTokenManager("test-secret", "lotmarket", time.Hour)
	sessions := session.NewSessionService(fx.Store, tm)
	bids := bidding.NewBiddingService(fx.Store, policy.New(fx.Store), feed, bidding.Config{
		Retry:     retry.Config{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 2},
		TxTimeout: 2 * time.Second,
	})
	hub := NewHub()
	wsSrv := NewWsServer(hub, feed, sessions, lot.NewLotService(fx.Store), bids)

	r := gin.New()
	r.GET("/ws", wsSrv.Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	alice := fx.User("alice")
	bob := fx.User("bob")
	return &env{
		fx: fx, feed: feed, hub: hub, tokens: tm, srv: srv,
		lotID: fx.Lot(fx.Auction(), alice.ID, "500.00"),
		alice: alice, bob: bob,
	}
}

func (e *env) url(t *testing.T, lotID int64, s domain.Session) string {
	t.Helper()
	tok, err := e.tokens.GenerateToken(domain.User{UserID: s.ID, Roles: s.Roles})
	require.NoError(t, err)
	q := url.Values{"lot_id": {fmt.Sprint(lotID)}, "token": {tok}}
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?" + q.Encode()
}

func (e *env) dial(t *testing.T, s domain.Session) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(e.url(t, e.lotID, s), nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

type frame struct {
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body"`
}

func read(t *testing.T, c *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, c.ReadJSON(&f))
	return f
}

func TestJoinSendsSnapshot(t *testing.T) {
	e := newEnv(t)
	c := e.dial(t, e.bob)

	f := read(t, c)
	require.Equal(t, EventSnapshot, f.Event)
	var body snapshotBody
	require.NoError(t, json.Unmarshal(f.Body, &body))
	assert.Equal(t, "store", body.Source)
	assert.Equal(t, e.lotID, body.LotID)
	assert.Equal(t, "500", body.Amount.String())
	assert.Zero(t, body.BidID)
}

func TestJoinPrefersCachedSnapshot(t *testing.T) {
	e := newEnv(t)
	e.feed.snapshots[e.lotID] = lotevents.Snapshot{LotID: e.lotID, Status: domain.LotOpen, BidID: 3}
	c := e.dial(t, e.bob)

	var body snapshotBody
	require.NoError(t, json.Unmarshal(read(t, c).Body, &body))
	assert.Equal(t, "cache", body.Source)
	assert.Equal(t, int64(3), body.BidID)
}

func TestBidOverSocketIsBroadcast(t *testing.T) {
	e := newEnv(t)
	watcher := e.dial(t, e.alice)
	read(t, watcher)
	bidder := e.dial(t, e.bob)
	read(t, bidder)
	require.Eventually(t, func() bool { return e.feed.following(e.lotID) }, time.Second, time.Millisecond)

	require.NoError(t, bidder.WriteJSON(map[string]any{"event": EventBid, "body": map[string]any{"amount": "400.00"}}))
	f := read(t, bidder)
	require.Equal(t, EventError, f.Event)
	var eb ErrorBody
	require.NoError(t, json.Unmarshal(f.Body, &eb))
	assert.Equal(t, "amount", eb.Field)

	require.NoError(t, bidder.WriteJSON(map[string]any{"event": EventBid, "body": map[string]any{"amount": "650.00"}}))

	f = read(t, watcher)
	require.Equal(t, EventBid, f.Event)
	var ev struct {
		LotID int64          `json:"lot_id"`
		Bid   domain.BidView `json:"bid"`
	}
	require.NoError(t, json.Unmarshal(f.Body, &ev))
	assert.Equal(t, e.lotID, ev.LotID)
	assert.Equal(t, e.bob.ID, ev.Bid.BidderID)

	// the bidder sees the broadcast and the ack, in either order
	events := []string{read(t, bidder).Event, read(t, bidder).Event}
	assert.ElementsMatch(t, []string{EventBid, EventBid + "-ack"}, events)
}

func TestLeavingReleasesRoom(t *testing.T) {
	e := newEnv(t)
	a := e.dial(t, e.alice)
	read(t, a)
	b := e.dial(t, e.bob)
	read(t, b)
	require.Equal(t, 2, e.hub.Size(e.lotID))
	require.Eventually(t, func() bool { return e.feed.following(e.lotID) }, time.Second, time.Millisecond)

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool { return e.hub.Size(e.lotID) == 1 }, time.Second, time.Millisecond)
	assert.True(t, e.feed.following(e.lotID))

	require.NoError(t, b.Close())
	require.Eventually(t, func() bool { return e.hub.Size(e.lotID) == 0 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return !e.feed.following(e.lotID) }, time.Second, time.Millisecond)
}

func TestUnknownBodyField(t *testing.T) {
	e := newEnv(t)
	c := e.dial(t, e.bob)
	read(t, c)

	require.NoError(t, c.WriteJSON(map[string]any{"event": EventBid, "body": map[string]any{"amount": "900", "lot_id": 77}}))
	f := read(t, c)
	require.Equal(t, EventError, f.Event)
	var eb ErrorBody
	require.NoError(t, json.Unmarshal(f.Body, &eb))
	assert.Equal(t, "body", eb.Field)
}

func TestUnknownEvent(t *testing.T) {
	e := newEnv(t)
	c := e.dial(t, e.bob)
	read(t, c)

	require.NoError(t, c.WriteJSON(map[string]any{"event": "lots/teleport"}))
	f := read(t, c)
	require.Equal(t, EventError, f.Event)
	assert.Contains(t, string(f.Body), "unknown event")
}

func TestHandshakeRejections(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name   string
		url    string
		status int
	}{
		{"missing lot", "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws", 400},
		{"bad token", "ws" + strings.TrimPrefix(e.srv.URL, "http") + fmt.Sprintf("/ws?lot_id=%d&token=nope", e.lotID), 401},
		{"unknown lot", e.url(t, 999, e.bob), 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(tt.url, nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestSubscriptionRefCount(t *testing.T) {
	feed := newMemFeed()
	sm := newSubscriptionManager(feed, NewHub())

	sm.Subscribe(4)
	sm.Subscribe(4)
	assert.Equal(t, 2, sm.refs(4))
	require.Eventually(t, func() bool { return feed.following(4) }, time.Second, time.Millisecond)

	sm.Unsubscribe(4)
	assert.True(t, feed.following(4))
	sm.Unsubscribe(4)
	assert.Zero(t, sm.refs(4))
	require.Eventually(t, func() bool { return !feed.following(4) }, time.Second, time.Millisecond)

	sm.Unsubscribe(4)
	assert.Zero(t, sm.refs(4))
}

func TestWrapFeedEvent(t *testing.T) {
	out, err := wrapFeedEvent([]byte(`{"event":"status","lot_id":4,"status":"closed"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"lots/status","body":{"lot_id":4,"status":"closed"}}`, string(out))

	out, err = wrapFeedEvent([]byte(`{"lot_id":4}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"lots/unknown","body":{"lot_id":4}}`, string(out))

	_, err = wrapFeedEvent([]byte(`not json`))
	assert.Error(t, err)
}
