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

	"github.com/mot25/event-emitter-sync/internal/audit"
	"github.com/mot25/event-emitter-sync/internal/config"
	"github.com/mot25/event-emitter-sync/internal/infrastructure/kafka"
	"github.com/mot25/event-emitter-sync/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Initialize structured JSON logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Metrics Server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("Auditor metrics listening on :9091")
		if err := http.ListenAndServe(":9091", mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.Topic,
		GroupID:     cfg.Kafka.GroupID,
		StartOffset: os.Getenv("KAFKA_START_OFFSET"),
	})
	defer consumer.Close()

	tally := audit.NewTally()
	logger.Info("Auditor started", "topic", cfg.Kafka.Topic, "group_id", cfg.Kafka.GroupID)

	for {
		msg, err := consumer.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Error("failed to fetch message", "error", err)
			time.Sleep(1 * time.Second)
			continue
		}

		ev, err := tally.Record(msg.Value)
		switch {
		case err == nil:
			metrics.AuditMessages.WithLabelValues("counted").Inc()
			logger.Debug("delta counted", "kind", ev.Kind, "message_id", ev.ID, "total", tally.Count(ev.Kind))
		case errors.Is(err, audit.ErrDuplicate):
			metrics.AuditMessages.WithLabelValues("duplicate").Inc()
			logger.Info("duplicate delta skipped", "kind", ev.Kind, "message_id", ev.ID)
		case errors.Is(err, audit.ErrOutOfOrder):
			metrics.AuditMessages.WithLabelValues("out_of_order").Inc()
			logger.Warn("delta applied out of order", "kind", ev.Kind, "error", err)
		default:
			// Not our envelope (or corrupt). Commit and move on.
			metrics.AuditMessages.WithLabelValues("invalid").Inc()
			logger.Error("failed to decode audit message", "error", err)
		}

		if err := consumer.CommitMessages(ctx, msg); err != nil {
			logger.Error("failed to commit kafka message", "error", err)
		}
	}

	logger.Info("auditor exited", "counts", tally.Snapshot())
}
