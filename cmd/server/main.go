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

	"github.com/redis/go-redis/v9"

	"github.com/nattw/visionchat/internal/ai"
	"github.com/nattw/visionchat/internal/chat"
	"github.com/nattw/visionchat/internal/config"
	"github.com/nattw/visionchat/internal/httpapi"
	"github.com/nattw/visionchat/internal/httpapi/handlers"
	"github.com/nattw/visionchat/internal/imagehost"
	"github.com/nattw/visionchat/internal/quota"
	"github.com/nattw/visionchat/internal/store/localstore"
	"github.com/nattw/visionchat/internal/store/rabbitmq"
	"github.com/nattw/visionchat/internal/store/remotestore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	local, err := localstore.Open(cfg.LocalDBPath)
	if err != nil {
		slog.Error("local store open failed", "path", cfg.LocalDBPath, "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// A failed remote open is not fatal: the facade runs local-only.
	var remote chat.RemoteAdapter
	var jobs chat.JobStore
	rs, err := remotestore.Open(ctx, cfg.DBDSN, rdb)
	if err != nil {
		slog.Warn("remote store unavailable, starting in local-only mode", "error", err)
	} else {
		remote = rs
		jobs = rs
	}

	registry := ai.NewRegistry()
	registry.Register(cfg.AIProvider, func(ctx context.Context) (ai.Provider, error) {
		return ai.NewVisionProvider(cfg.AIBaseURL, cfg.AIAPIKey), nil
	})

	blobs := imagehost.NewBlobStore()
	uploader := imagehost.NewUploader(cfg.ImageHostURL, cfg.ImageHostClientID, blobs)
	counter := quota.NewCounter(local, cfg.DailyLimit)

	store := chat.NewStore(remote, local)
	svc := chat.NewService(store, registry, cfg.AIProvider, uploader, counter, jobs)

	var rabbit *rabbitmq.Publisher
	if remote != nil {
		rabbit, err = rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			slog.Warn("async queue unavailable", "error", err)
			rabbit = nil
		} else {
			defer rabbit.Close()
		}
	}

	h := handlers.NewHandler(cfg, svc, local, blobs, rabbit)
	router := httpapi.NewRouter(cfg, h)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	go func() {
		slog.Info("server started", "addr", cfg.Addr, "degraded", store.Degraded())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}
