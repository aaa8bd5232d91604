// Command fgwsd runs a standalone foxglove.websocket.v1 server: it loads
// configuration, wires metrics and logging, optionally ingests a Kafka
// topic as a message source, and serves WebSocket connections until an
// interrupt or SIGTERM.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/adred-codev/fgws/internal/config"
	ingestkafka "github.com/adred-codev/fgws/internal/ingest/kafka"
	"github.com/adred-codev/fgws/internal/metrics"
	"github.com/adred-codev/fgws/internal/server"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (overrides FGWS_LOG_LEVEL)")
	flag.Parse()

	bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(&bootLogger)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := newLogger(*cfg)
	cfg.LogConfig(logger)

	handlers := server.Handlers{
		OnSubscribeEdge:   func(channelID uint32) { logger.Debug().Uint32("channel_id", channelID).Msg("subscribe edge") },
		OnUnsubscribeEdge: func(channelID uint32) { logger.Debug().Uint32("channel_id", channelID).Msg("unsubscribe edge") },
	}

	srv := server.New(cfg, logger, handlers)

	collector := metrics.NewCollector(logger, cfg.MetricsInterval, metrics.Counters{
		SessionsActive: srv.SessionCounter(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	collector.Start(ctx)
	srv.ResourceGuard().StartSampling(ctx, cfg.MetricsInterval)

	var ingest *ingestkafka.Consumer
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		ingest, err = ingestkafka.NewConsumer(ingestkafka.Config{
			Brokers:       brokers,
			Topics:        cfg.KafkaTopicList(),
			ConsumerGroup: cfg.ConsumerGroup,
			Logger:        logger,
			Broadcast:     srv.BroadcastMessage,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create kafka ingest consumer")
		}
		ingest.Start()
	}

	mux := http.NewServeMux()
	mux.Handle("/", srv)
	mux.Handle("/metrics", metrics.Handler())

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("fgwsd listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	cancel()
	if ingest != nil {
		ingest.Stop()
	}
	collector.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during http shutdown")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.LogFormat == "pretty" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Str("service", cfg.ServerName).Logger()
}
