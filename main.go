package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"auction-house/internal/bidding"
	"auction-house/internal/config"
	cronrunner "auction-house/internal/cron"
	"auction-house/internal/db"
	"auction-house/internal/events"
	"auction-house/internal/lifecycle"
	"auction-house/internal/realtime"
	"auction-house/internal/repository"
	"auction-house/internal/repository/gormstore"
	"auction-house/internal/server"
	"auction-house/utils"
)

func main() {
	cfgPath := os.Getenv("AH_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	envOnly := false
	if raw := os.Getenv("AH_ENV_ONLY"); raw != "" {
		envOnly = strings.EqualFold(raw, "true") || raw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		utils.Fatal("failed to load config", map[string]any{"path": cfgPath, "error": err.Error()})
	}
	utils.SetLevel(cfg.Log.Level)

	store, cleanup := openStore(cfg)
	defer cleanup()

	hub := realtime.NewHub()
	fanout := events.NewFanout(hub, store)
	biddingSvc := bidding.NewService(store, fanout)
	lifecycleSvc := lifecycle.NewService(store, fanout, decimal.NewFromFloat(cfg.Bidding.MinIncrementFloor))

	baseCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Cron.Enabled {
		runner := cronrunner.New(baseCtx)
		if _, err := runner.Add(cfg.Cron.ExpireSweep, func(ctx context.Context) {
			if ended := lifecycleSvc.ExpireDue(ctx, cfg.Cron.SweepLimit); ended > 0 {
				utils.Info("expired auctions ended", map[string]any{"count": ended})
			}
		}); err != nil {
			utils.Fatal("failed to schedule expire sweep", map[string]any{"spec": cfg.Cron.ExpireSweep, "error": err.Error()})
		}
		runner.Start()
		defer runner.Stop()
	}

	if !strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.SetupRouter(server.Deps{
		Lifecycle:     lifecycleSvc,
		Bidding:       biddingSvc,
		Notifications: store,
		Hub:           hub,
		Realtime:      cfg.Realtime,
	})

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	go func() {
		utils.Info("starting auction server", map[string]any{"addr": cfg.Server.HTTPAddr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Fatal("server failed", map[string]any{"error": err.Error()})
		}
	}()

	<-baseCtx.Done()
	utils.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Error("graceful shutdown failed", map[string]any{"error": err.Error()})
	}
	fanout.Wait()
}

// openStore picks the backing store: Postgres when a DSN is configured, the
// in-memory store otherwise (local development).
func openStore(cfg config.Config) (repository.AuctionStore, func()) {
	if cfg.DB.DSN == "" {
		utils.Warn("no db.dsn configured, using in-memory store", nil)
		return repository.NewMemoryStore(), func() {}
	}

	conn, err := db.Open(cfg.DB)
	if err != nil {
		utils.Fatal("db open failed", map[string]any{"error": err.Error()})
	}
	if err := db.AutoMigrate(conn); err != nil {
		utils.Fatal("auto-migrate failed", map[string]any{"error": err.Error()})
	}
	return gormstore.New(conn.Gorm), func() {
		if err := db.Close(conn); err != nil {
			utils.Error("db close failed", map[string]any{"error": err.Error()})
		}
	}
}
