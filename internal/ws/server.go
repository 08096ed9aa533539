package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"lotmarket/internal/apperr"
	"lotmarket/internal/domain"
	"lotmarket/internal/metrics"
	"lotmarket/internal/redis/lotevents"
	"lotmarket/internal/services/bidding"
	"lotmarket/internal/services/lot"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 12 * time.Second
	pingPeriod    = 3 * time.Second // must be < pongWait
	readLimit     = 4096
	dispatchWait  = 5 * time.Second
	snapshotWait  = 4 * time.Second
	handshakeWait = 5 * time.Second
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Session, error)
}

// ConnContext is the state of one websocket connection.
type ConnContext struct {
	LotID   int64
	Session domain.Session
	Server  *WsServer
}

type WsServer struct {
	hub      *Hub
	subMgr   *subscriptionManager
	router   *Router
	feed     Feed
	sessions Authenticator
	lots     lot.ILotService
	bids     bidding.IBiddingService
	upgrader websocket.Upgrader
}

func NewWsServer(h *Hub, feed Feed, sessions Authenticator, lots lot.ILotService, bids bidding.IBiddingService) *WsServer {
	srv := &WsServer{
		hub:      h,
		subMgr:   newSubscriptionManager(feed, h),
		router:   NewRouter(),
		feed:     feed,
		sessions: sessions,
		lots:     lots,
		bids:     bids,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeWait,
			// The token travels in the query string, never in cookies, so
			// cross-origin pages gain nothing from connecting.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	srv.registerHandlers()
	return srv
}

// Handle is the gin entry point for /ws?lot_id=&token=.
func (s *WsServer) Handle(ginCtx *gin.Context) {
	lotID, err := strconv.ParseInt(ginCtx.Query("lot_id"), 10, 64)
	if err != nil || lotID <= 0 {
		ginCtx.JSON(http.StatusBadRequest, ErrorBody{Error: "lot_id is required", Field: "lot_id"})
		return
	}
	sess, err := s.sessions.Authenticate(ginCtx.Request.Context(), ginCtx.Query("token"))
	if err != nil {
		ginCtx.JSON(http.StatusUnauthorized, ErrorBody{Error: "invalid token"})
		return
	}
	detail, err := s.lots.Get(ginCtx.Request.Context(), sess, lotID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, apperr.ErrNotFound) {
			status = http.StatusNotFound
		}
		ginCtx.JSON(status, ErrorBody{Error: err.Error()})
		return
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(readLimit)
	_ = rawConn.SetReadDeadline(time.Now().Add(pongWait))
	rawConn.SetPongHandler(func(string) error {
		return rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	wsConn := &clientConn{rawConn: rawConn}
	s.hub.Join(lotID, wsConn)
	s.subMgr.Subscribe(lotID)
	metrics.IncWSClients()

	if err := s.pushInitialSnapshot(ginCtx.Request.Context(), detail, wsConn); err != nil {
		zap.L().Warn("ws.snapshot", zap.Int64("lot_id", lotID), zap.Error(err))
	}

	done := make(chan struct{})
	go s.reader(&ConnContext{LotID: lotID, Session: sess, Server: s}, wsConn, done)
	go s.pinger(wsConn, done)
}

func (s *WsServer) registerHandlers() {
	Register(
		s.router,
		EventBid,
		func(ctx context.Context, cc *ConnContext, req BidRequest) (domain.BidView, error) {
			return s.bids.PlaceBid(ctx, cc.Session, domain.PlaceBidInput{
				LotID:     cc.LotID,
				AuctionID: req.AuctionID,
				Amount:    req.Amount,
			})
		},
	)
}

// snapshotBody is sent on join. Source says whether it came from the Redis
// cache or the store.
type snapshotBody struct {
	lotevents.Snapshot
	Source string `json:"source"`
}

func (s *WsServer) pushInitialSnapshot(ctx context.Context, detail domain.LotDetail, conn *clientConn) error {
	ctx, cancel := context.WithTimeout(ctx, snapshotWait)
	defer cancel()

	snap, ok, err := s.feed.Snapshot(ctx, detail.LotID)
	if err != nil {
		zap.L().Debug("ws.snapshot_cache", zap.Int64("lot_id", detail.LotID), zap.Error(err))
	}
	body := snapshotBody{Snapshot: snap, Source: "cache"}
	if err != nil || !ok {
		body = snapshotBody{Snapshot: storeSnapshot(detail), Source: "store"}
	}
	return conn.send(EventSnapshot, body)
}

// storeSnapshot builds a snapshot from a lot and its bids, newest first.
func storeSnapshot(detail domain.LotDetail) lotevents.Snapshot {
	snap := lotevents.Snapshot{LotID: detail.LotID, Status: detail.Status, Amount: detail.StartBid}
	if len(detail.Bids) > 0 {
		last := detail.Bids[0]
		t := last.BidTime
		snap.BidID = last.BidID
		snap.Amount = last.Amount
		snap.BidderID = last.BidderID
		snap.BidTime = &t
	}
	return snap
}

// errorBody hides the cause of internal failures from the client.
func errorBody(err error) (ErrorBody, bool) {
	e, ok := apperr.As(err)
	if !ok || errors.Is(err, apperr.ErrInternal) {
		return ErrorBody{Error: apperr.ErrInternal.Error()}, false
	}
	return ErrorBody{Error: e.Message(), Field: e.Field, Retriable: e.Retriable}, true
}

func (s *WsServer) reader(cc *ConnContext, conn *clientConn, done chan<- struct{}) {
	defer func() {
		close(done)
		if s.hub.Leave(cc.LotID, conn) {
			s.subMgr.Unsubscribe(cc.LotID)
			metrics.DecWSClients()
		}
	}()

	for {
		var env Envelope
		if err := conn.rawConn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("ws.read", zap.Int64("lot_id", cc.LotID), zap.Error(err))
			}
			return // client closed or errored
		}

		ctx, cancel := context.WithTimeout(context.Background(), dispatchWait)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			body, known := errorBody(err)
			if !known {
				zap.L().Error("ws.dispatch", zap.String("event", env.Event), zap.Error(err))
			}
			_ = conn.send(EventError, body)
			continue
		}

		// ---- success -> {"event":"<evt>-ack", "body":{...}} --------
		_ = conn.send(env.Event+"-ack", res)
	}
}

func (s *WsServer) pinger(conn *clientConn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				_ = conn.rawConn.Close()
				return
			}
		}
	}
}
