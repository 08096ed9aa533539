package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"lotmarket/internal/http/apihandler"
	"lotmarket/internal/http/middleware"
	"lotmarket/internal/metrics"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const disposeTimeout = 10 * time.Second

type httpServer struct {
	listenPort uint16
	srv        http.Server
	ln         net.Listener
	api        *apihandler.Handler
	sessions   middleware.Authenticator
	// ws is nil when the live lot feed is disabled.
	ws  gin.HandlerFunc
	ctx context.Context
}

func NewHttpServer(ctx context.Context, listenPort uint16, api *apihandler.Handler, sessions middleware.Authenticator, ws gin.HandlerFunc) *httpServer {
	return &httpServer{
		listenPort: listenPort,
		api:        api,
		sessions:   sessions,
		ws:         ws,
		ctx:        ctx,
	}
}

// Router builds the engine served by Start.
func (h *httpServer) Router() *gin.Engine {
	routerEngine := gin.New()

	routerEngine.Use(middleware.RequestID())
	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))
	routerEngine.Use(metrics.GinMiddleware())

	routerEngine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	routerEngine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	// websocket endpoint, authenticated by the token query parameter
	if h.ws != nil {
		routerEngine.GET("/ws", h.ws)
	}

	// REST API
	public := routerEngine.Group("/api")
	authed := routerEngine.Group("/api", middleware.Session(h.sessions))
	h.api.Register(public, authed)

	return routerEngine
}

func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	h.srv = http.Server{
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	zap.L().Info("http.listening", zap.String("addr", listenAddr))
	if err := h.srv.Serve(h.ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in-flight requests to finish.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), disposeTimeout)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		zap.L().Error("http_dispose", zap.Error(errors.New("shutdown timed out")))
	}
	return nil
}
