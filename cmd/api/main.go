package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sitevisor.org/internal/auth"
	"sitevisor.org/internal/config"
	"sitevisor.org/internal/feed"
	"sitevisor.org/internal/httpapi"
	"sitevisor.org/internal/media"
	"sitevisor.org/internal/obs"
	"sitevisor.org/internal/resource"
	"sitevisor.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Postgres when a DSN is configured, in-memory otherwise (dev mode).
	var (
		store   resource.Store
		pgStore *pg.Store
	)
	if cfg.PostgresDSN != "" {
		pgStore, err = pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
	} else {
		log.Println("no DSN configured, using in-memory store")
		store = resource.NewMemory()
	}

	mediaStore, err := media.NewFS(cfg.MediaRoot)
	if err != nil {
		log.Fatalf("media: %v", err)
	}

	changes := feed.New()
	authSvc := auth.NewService(store.Users(), auth.NewBroadcaster())
	resSvc := resource.NewService(store, changes)

	probe := httpapi.ReadyProbe{}
	if pgStore != nil {
		probe.DB = pgStore.DB()
	}
	api := httpapi.New(probe, version, httpapi.Info{
		SupportPhone:     cfg.SupportPhone,
		PaymentPublicKey: cfg.PaymentPublicKey,
	}, authSvc, resSvc, changes, mediaStore,
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSec))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// SSE connections stay open; no write timeout.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting sitevisor-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
