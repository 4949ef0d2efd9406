package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/nattw/visionchat/internal/ai"
	"github.com/nattw/visionchat/internal/chat"
	"github.com/nattw/visionchat/internal/config"
	"github.com/nattw/visionchat/internal/imagehost"
	"github.com/nattw/visionchat/internal/quota"
	"github.com/nattw/visionchat/internal/store/localstore"
	"github.com/nattw/visionchat/internal/store/rabbitmq"
	"github.com/nattw/visionchat/internal/store/remotestore"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

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
		slog.Error("local store open failed", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// Jobs only exist remotely; the worker has no local fallback.
	rs, err := remotestore.Open(ctx, cfg.DBDSN, rdb)
	if err != nil {
		slog.Error("remote store open failed", "error", err)
		os.Exit(1)
	}

	registry := ai.NewRegistry()
	registry.Register(cfg.AIProvider, func(ctx context.Context) (ai.Provider, error) {
		return ai.NewVisionProvider(cfg.AIBaseURL, cfg.AIAPIKey), nil
	})

	blobs := imagehost.NewBlobStore()
	uploader := imagehost.NewUploader(cfg.ImageHostURL, cfg.ImageHostClientID, blobs)
	counter := quota.NewCounter(local, cfg.DailyLimit)

	store := chat.NewStore(rs, local)
	svc := chat.NewService(store, registry, cfg.AIProvider, uploader, counter, rs)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		slog.Error("rabbit dial failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		slog.Error("rabbit channel failed", "error", err)
		os.Exit(1)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		slog.Error("queue declare failed", "error", err)
		os.Exit(1)
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		slog.Error("qos failed", "error", err)
		os.Exit(1)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		slog.Error("consume failed", "error", err)
		os.Exit(1)
	}

	slog.Info("worker started", "queue", cfg.RabbitQueue, "concurrency", concurrency)

	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m rabbitmq.JobMessage
				if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
					slog.Warn("bad job message", "worker", workerID, "error", err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := svc.ProcessJob(ctx, m.JobID); err != nil {
					slog.Warn("job failed", "worker", workerID, "job_id", m.JobID,
						"cost", time.Since(start), "error", err)
					_ = d.Nack(false, false)
					continue
				}
				if err := d.Ack(false); err != nil {
					slog.Warn("ack failed", "worker", workerID, "job_id", m.JobID, "error", err)
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				slog.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}
