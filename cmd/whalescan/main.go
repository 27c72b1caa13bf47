package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/polywhale/whalescan/internal/alerts"
	"github.com/polywhale/whalescan/internal/config"
	"github.com/polywhale/whalescan/internal/metrics"
	"github.com/polywhale/whalescan/internal/polymarket/dataapi"
	"github.com/polywhale/whalescan/internal/polymarket/gammaapi"
	"github.com/polywhale/whalescan/internal/polymarket/rtds"
	"github.com/polywhale/whalescan/internal/processor"
	"github.com/polywhale/whalescan/internal/settlement"
	"github.com/polywhale/whalescan/internal/storage"
)

func main() {
	// .env is optional, real deployments use the environment
	_ = godotenv.Load()

	// Initialize logger
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	log.Info("Starting whalescan service...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	log.WithFields(logrus.Fields{
		"environment":         cfg.Environment,
		"whale_threshold_usd": cfg.WhaleThresholdUSD,
		"rtds_url":            cfg.RTDSURL,
		"settlement_interval": cfg.SettlementInterval.String(),
		"alert_mode":          cfg.AlertMode,
	}).Info("Configuration loaded")

	// Initialize database
	db, err := storage.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	log.Info("Database connected")

	// Run auto-migration
	if err := db.AutoMigrate(); err != nil {
		log.WithError(err).Fatal("Failed to run database migrations")
	}

	log.Info("Database migrations complete")

	// Initialize API clients
	dataClient := dataapi.NewClient(cfg)
	gammaClient := gammaapi.NewClient(cfg)

	log.Info("API clients initialized")

	// Initialize alert sender
	alertSender := createAlertSender(cfg, log)

	verifyCtx, verifyCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := alertSender.Verify(verifyCtx); err != nil {
		log.WithError(err).Warn("Alert sender verification failed, alerts may not deliver")
	}
	verifyCancel()

	log.WithField("alert_mode", cfg.AlertMode).Info("Alert sender initialized")

	// Wire feed -> processor
	events := make(chan rtds.TradeEvent, cfg.FeedBufferSize)
	feed := rtds.NewClient(cfg, events, log)
	proc := processor.New(cfg, db, dataClient, alertSender, log)
	engine := settlement.NewEngine(cfg, db, gammaClient, log)

	// Start HTTP server (health + metrics + read API)
	go startHTTPServer(cfg.HealthPort, feed, db, log)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return feed.Run(gctx)
	})
	g.Go(func() error {
		return proc.Run(gctx, events)
	})
	g.Go(func() error {
		return engine.Run(gctx)
	})
	g.Go(func() error {
		return statsLoop(gctx, cfg, feed, proc, log)
	})
	g.Go(func() error {
		return cleanupLoop(gctx, cfg, db, log)
	})

	log.Info("All components running")

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.WithError(err).Fatal("Component failed, shutting down")
	}

	log.Info("Graceful shutdown complete")
}

// statsLoop periodically logs a one-line operational summary
func statsLoop(ctx context.Context, cfg *config.Config, feed *rtds.Client, proc *processor.Processor, log *logrus.Logger) error {
	ticker := time.NewTicker(cfg.StatsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			feedStats := feed.Stats()
			whales, alertsSent := proc.Stats()
			log.WithFields(logrus.Fields{
				"feed_connected":    feedStats.Connected,
				"messages_received": feedStats.MessagesReceived,
				"last_data_at":      feedStats.LastDataAt.UTC().Format(time.RFC3339),
				"whales_recorded":   whales,
				"alerts_sent":       alertsSent,
			}).Info("Periodic stats")
		}
	}
}

// cleanupLoop deletes settled positions older than the retention window
func cleanupLoop(ctx context.Context, cfg *config.Config, db *storage.DB, log *logrus.Logger) error {
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -cfg.RetentionDays).Unix()
			deleted, err := db.CleanupResolvedBefore(ctx, cutoff)
			if err != nil {
				log.WithError(err).Error("Retention cleanup failed")
				continue
			}
			if deleted > 0 {
				log.WithFields(logrus.Fields{
					"deleted":        deleted,
					"retention_days": cfg.RetentionDays,
				}).Info("Retention cleanup complete")
			}
		}
	}
}

func createAlertSender(cfg *config.Config, log *logrus.Logger) alerts.Sender {
	// Parse comma-separated alert modes
	modes := strings.Split(cfg.AlertMode, ",")
	for i, mode := range modes {
		modes[i] = strings.TrimSpace(mode)
	}

	var senders []alerts.Sender
	for _, mode := range modes {
		switch mode {
		case "log":
			senders = append(senders, alerts.NewLogSender(log))
		case "discord":
			if len(cfg.DiscordWebhookURLs) == 0 {
				log.Warn("Discord mode specified but DISCORD_WEBHOOK_URLS not set")
				continue
			}
			for _, url := range cfg.DiscordWebhookURLs {
				senders = append(senders, alerts.NewDiscordSender(url))
			}
		case "smtp":
			if cfg.SMTPHost == "" {
				log.Warn("SMTP mode specified but SMTP_HOST not set")
				continue
			}
			senders = append(senders, alerts.NewSMTPSender(
				cfg.SMTPHost,
				cfg.SMTPPort,
				cfg.SMTPUser,
				cfg.SMTPPassword,
				cfg.SMTPFrom,
				cfg.SMTPTo,
			))
		default:
			log.WithField("mode", mode).Warn("Unknown alert mode, skipping")
		}
	}

	if len(senders) == 0 {
		log.Warn("No valid alert senders configured, using log")
		return alerts.NewLogSender(log)
	}
	if len(senders) == 1 {
		return senders[0]
	}
	return alerts.NewMultiSender(senders...)
}

func startHTTPServer(port int, feed *rtds.Client, db *storage.DB, log *logrus.Logger) {
	mux := http.NewServeMux()

	// Health check endpoints
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		metrics.RecordHealthCheck(true)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy"}`)
	})

	// Ready only once the feed is subscribed
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !feed.Stats().Connected {
			metrics.RecordHealthCheck(false)
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"feed disconnected"}`)
			return
		}
		metrics.RecordHealthCheck(true)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ready"}`)
	})

	// Read API
	mux.HandleFunc("/wallets/top", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rollups, err := db.GetTopWallets(r.Context(), r.URL.Query().Get("by"), limit)
		if err != nil {
			log.WithError(err).Error("Top wallets query failed")
			http.Error(w, `{"error":"query failed"}`, http.StatusInternalServerError)
			return
		}

		type topWallet struct {
			storage.WalletRollup
			WinRate *float64 `json:"winRate"`
		}
		entries := make([]topWallet, 0, len(rollups))
		for _, rollup := range rollups {
			entry := topWallet{WalletRollup: rollup}
			if rate, ok := rollup.WinRate(); ok {
				entry.WinRate = &rate
			}
			entries = append(entries, entry)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	})

	mux.HandleFunc("/wallets/", func(w http.ResponseWriter, r *http.Request) {
		address := strings.TrimPrefix(r.URL.Path, "/wallets/")
		if address == "" || strings.Contains(address, "/") {
			http.NotFound(w, r)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		positions, err := db.GetWalletPositions(r.Context(), address, limit)
		if err != nil {
			log.WithError(err).Error("Wallet positions query failed")
			http.Error(w, `{"error":"query failed"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(positions)
	})

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	log.WithField("port", port).Info("Starting HTTP server (health + metrics)")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("HTTP server failed")
	}
}
