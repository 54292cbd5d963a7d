package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outdial/internal/audit"
	"outdial/internal/auth"
	"outdial/internal/bookings"
	"outdial/internal/campaign"
	"outdial/internal/config"
	"outdial/internal/httpapi"
	"outdial/internal/leads"
	"outdial/internal/reconcile"
	"outdial/internal/reporting"
	"outdial/internal/scheduler"
	"outdial/internal/suppression"
	"outdial/internal/telephony"
	"outdial/pkg/logger"
	"outdial/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Error("time zone load failed", "err", err)
		os.Exit(1)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Stores and schema.
	leadStore := leads.NewPostgresStore(db)
	campaignStore := campaign.NewPostgresStore(db, loc)
	bookingStore := bookings.NewPostgresStore(db)
	auditRepo := audit.NewPostgresRepo(db)
	for name, ensure := range map[string]func(context.Context) error{
		"leads":     leadStore.EnsureSchema,
		"campaigns": campaignStore.EnsureSchema,
		"bookings":  bookingStore.EnsureSchema,
		"audit":     auditRepo.EnsureSchema,
	} {
		if err := ensure(rootCtx); err != nil {
			log.Error("schema ensure failed", "store", name, "err", err)
			os.Exit(1)
		}
	}

	// Suppression lives in Redis; re-hydrate the booked-address set from
	// the bookings table so a flushed Redis does not re-dial sold homes.
	suppress := suppression.NewRedisRegistry(rdb)
	if addrs, err := bookingStore.Addresses(rootCtx); err != nil {
		log.Error("booked address load failed", "err", err)
	} else if err := suppress.SeedAddresses(rootCtx, addrs); err != nil {
		log.Error("booked address seed failed", "err", err)
	}

	vapi := telephony.NewVapiDispatcher(cfg.Vapi.APIKey, cfg.Vapi.BaseURL)

	engine := scheduler.NewEngine(campaignStore, leadStore, suppress, vapi, scheduler.NewRedisSlots(rdb), loc, log)
	registry := scheduler.NewRegistry(engine, campaignStore, log)
	reconciler := reconcile.New(campaignStore, leadStore, suppress, bookingStore, engine, scheduler.NewRedisSlots(rdb), log)

	// Campaigns that were running when the last process died pick up
	// where they left off.
	if err := registry.ResumePersisted(rootCtx); err != nil {
		log.Error("campaign resume failed", "err", err)
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:       authManager,
		Campaigns:  campaignStore,
		Leads:      leadStore,
		Bookings:   bookingStore,
		Registry:   registry,
		Engine:     engine,
		Reconciler: reconciler,
		Vapi:       vapi,
		Audit:      audit.NewService(auditRepo),
		Reports:    reporting.NewService(campaignStore, bookingStore),
		Log:        log,
	}
	registerRoutes(r, h, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	// Disarm loops without flipping persisted run state: campaigns marked
	// running resume on the next boot.
	registry.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
