package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/silkfinik/fairsplit/internal/auth"
	"github.com/silkfinik/fairsplit/internal/engine"
	"github.com/silkfinik/fairsplit/internal/remote"
	"github.com/silkfinik/fairsplit/internal/remote/httpchannel"
	"github.com/silkfinik/fairsplit/internal/remote/remotetest"
	"github.com/silkfinik/fairsplit/internal/storage/sqlite"
	"github.com/silkfinik/fairsplit/pkg/logging"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	logger := logging.Setup()

	dbPath := getEnv("DB_PATH", "./data/fairsplit.db")
	remoteURL := os.Getenv("REMOTE_URL")
	metricsAddr := getEnv("METRICS_ADDR", ":9100")
	cronSpec := getEnv("SYNC_SCHEDULE", "@every 5m")
	secret := getEnv("SESSION_SECRET", "dev-secret")

	store, err := sqlite.New(dbPath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("storage initialized", "database", dbPath)

	session := auth.NewSession(secret)
	if token := os.Getenv("SESSION_TOKEN"); token != "" {
		if err := session.SetToken(token); err != nil {
			logger.Error("failed to load session token", "error", err)
			os.Exit(1)
		}
	}

	var channel remote.Channel
	if remoteURL != "" {
		channel = httpchannel.New(remoteURL, session, logger)
		logger.Info("using remote backend", "url", remoteURL)
	} else {
		channel = remotetest.NewServer()
		logger.Warn("no REMOTE_URL configured, using in-memory backend")
	}

	eng := engine.New(engine.Config{
		Store:    store,
		Channel:  channel,
		Session:  session,
		Logger:   logger,
		CronSpec: cronSpec,
	})

	if err := eng.Start(); err != nil {
		logger.Error("failed to start sync engine", "error", err)
		os.Exit(1)
	}
	defer eng.Stop()

	if err := eng.StartGroupSync(context.Background()); err != nil {
		logger.Error("failed to start group sync", "error", err)
		os.Exit(1)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics server starting", "address", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logger.Info("shutting down", slog.String("signal", sig.String()))
}
