package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"lotmarket/internal/auth"
	"lotmarket/internal/config"
	"lotmarket/internal/database/db_client"
	"lotmarket/internal/database/migrations"
	"lotmarket/internal/http/apihandler"
	"lotmarket/internal/http/http_server"
	"lotmarket/internal/lotsync"
	"lotmarket/internal/policy"
	"lotmarket/internal/redis/lotevents"
	"lotmarket/internal/redis/redis_client"
	"lotmarket/internal/redis/redis_functions"
	"lotmarket/internal/retry"
	"lotmarket/internal/services/auction"
	"lotmarket/internal/services/bidding"
	"lotmarket/internal/services/company"
	"lotmarket/internal/services/contract"
	"lotmarket/internal/services/invoice"
	"lotmarket/internal/services/lot"
	"lotmarket/internal/services/review"
	"lotmarket/internal/services/session"
	"lotmarket/internal/services/user"
	"lotmarket/internal/store"
	"lotmarket/internal/store/memory"
	"lotmarket/internal/store/postgres"
	"lotmarket/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.StoreDriver == config.StoreMemory {
		zap.L().Warn("store.memory", zap.String("reason", "data is lost on restart"))
		return memory.New(memory.Options{LockTimeout: cfg.BidLockTimeout}), nil
	}

	pgDb, err := db_client.Open(ctx, cfg.Postgres())
	if err != nil {
		return nil, err
	}
	if cfg.PostgresMigrate {
		if err := migrations.Apply(ctx, pgDb); err != nil {
			_ = pgDb.Close()
			return nil, err
		}
	}
	return postgres.New(pgDb, postgres.Options{LockTimeout: cfg.BidLockTimeout}), nil
}

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}

	if cfg.LogFormat == "json" {
		if Log, err = zap.NewProduction(); err != nil {
			panic(err)
		}
		zap.ReplaceGlobals(Log)
		gin.SetMode(gin.ReleaseMode)
	}
	defer Log.Sync()

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Store
	st, err := openStore(ctx, cfg)
	if err != nil {
		Log.Fatal("store-open", zap.Error(err))
	}
	defer st.Close()

	// 4. Services
	pe := policy.New(st)
	tokens := auth.NewTokenManager(cfg.JwtSecret, cfg.JwtIssuer, cfg.JwtTTL)
	sessions := session.NewSessionService(st, tokens)
	lots := lot.NewLotService(st)

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.BidRetryAttempts
	bidCfg := bidding.Config{Retry: retryCfg, TxTimeout: cfg.BidTxTimeout}

	// 5. Redis: live lot feed, optional
	var (
		publisher bidding.BidPublisher
		wsHandler gin.HandlerFunc
		feed      ws.Feed
	)
	if cfg.RedisEnabled {
		redisClient, err := redis_client.NewRedisClient(ctx, cfg.RedisHost, cfg.RedisPort)
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()

		if err := redis_functions.LoadAll(ctx, redisClient); err != nil {
			Log.Fatal("load-redis-funcs", zap.Error(err))
		}

		lotPublisher := lotevents.NewPublisher(redisClient)
		publisher = lotPublisher
		feed = ws.NewRedisFeed(redisClient)

		// Background: snapshot sync from the store
		lotsync.New(st, lotPublisher, cfg.LotSyncInterval).Run(ctx)
	} else {
		Log.Info("redis.disabled", zap.String("effect", "no live lot feed"))
	}

	bids := bidding.NewBiddingService(st, pe, publisher, bidCfg)

	if feed != nil {
		// WebSockets hub + feed fan-out
		wsSrv := ws.NewWsServer(ws.NewHub(), feed, sessions, lots, bids)
		wsHandler = wsSrv.Handle
	}

	api := apihandler.New(apihandler.Services{
		Auctions:  auction.NewAuctionService(st),
		Lots:      lots,
		Bids:      bids,
		Contracts: contract.NewContractService(st, pe),
		Invoices:  invoice.NewInvoiceService(st, pe),
		Reviews:   review.NewReviewService(st, pe),
		Companies: company.NewCompanyService(st, pe),
		Users:     user.NewUserService(st),
		Sessions:  sessions,
	}, cfg.AuthMaxDelay)

	// 6. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, api, sessions, wsHandler)
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Start() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			Log.Error("Failed to start HTTP server", zap.Error(err))
		}
	case <-ctx.Done():
		Log.Info("shutdown", zap.String("reason", "signal"))
		_ = httpServer.Dispose()
	}
}
