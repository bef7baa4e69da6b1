package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uchkunrakhimow/auth-kit/internal/config"
	"github.com/uchkunrakhimow/auth-kit/internal/database"
	"github.com/uchkunrakhimow/auth-kit/internal/sessions"
	"github.com/uchkunrakhimow/auth-kit/pkg/logger"
)

// Periodic reclamation of expired sessions in the Mongo store. Expiry
// is already enforced lazily at validation time, so this process only
// keeps the collection small; running it is optional. Redis-backed
// deployments don't need it at all (key TTLs reclaim on their own).
func main() {
	interval := flag.Duration("interval", time.Hour, "time between sweeps")
	flag.Parse()

	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if cfg.MongoDB.URI == "" {
		logger.Fatalf("sweeper requires MONGODB_URI")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		logger.Fatalf("failed to connect to MongoDB: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	repo := sessions.NewMongoRepository(client.Database(cfg.MongoDB.Database).Collection(database.SessionsCollection))
	svc := sessions.NewService(repo)

	logger.Infof("session sweeper running every %s", *interval)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	sweep := func() {
		n, err := svc.SweepExpired(ctx)
		if err != nil {
			logger.Errorf("sweep failed: %v", err)
			return
		}
		if n > 0 {
			logger.Infof("reclaimed %d expired sessions", n)
		}
	}

	sweep()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("shutting down")
			return
		case <-ticker.C:
			sweep()
		}
	}
}
