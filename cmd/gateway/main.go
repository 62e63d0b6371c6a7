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

	"relay-gateway/relay"
	"relay-gateway/relay/application"
	"relay-gateway/relay/domain"
	"relay-gateway/relay/infra"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// submission é o item que circula pelo relay.
type submission struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	Payload    any       `json:"payload"`
}

func decodeSubmission(r *http.Request) (submission, error) {
	var payload any
	if err := infra.DecodeJSON(r.Body, &payload); err != nil {
		return submission{}, err
	}
	return submission{ID: infra.NewID(), ReceivedAt: time.Now().UTC(), Payload: payload}, nil
}

func main() {
	cfg, err := readConfig()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))
	logger := watermill.NewSlogLogger(slogger)

	if err := run(cfg, logger); err != nil {
		logger.Error("gateway stopped with error", err, nil)
		os.Exit(1)
	}
}

func run(cfg config, logger watermill.LoggerAdapter) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var metrics *infra.Metrics
	if cfg.metricsEnabled {
		metrics = infra.NewMetrics(nil)
		if err := metrics.Register(); err != nil {
			return err
		}
	}

	var redisStats domain.StatsStore
	if cfg.rateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateStatsRedisAddr,
			Password: cfg.rateStatsRedisPassword,
			DB:       cfg.rateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			return err
		}

		redisStats = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
	}
	var stats domain.StatsStore
	if metrics != nil || redisStats != nil {
		stats = infra.TeeStats(metrics, redisStats)
	}

	rel, err := infra.NewBoundedRelay[submission](cfg.bufferSize,
		infra.WithMaxBatch(cfg.maxBatch),
		infra.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	// O publish só retorna depois do ack do consumidor: a demanda do sink
	// acompanha o ritmo do pipeline.
	pubSub := gochannel.NewGoChannel(gochannel.Config{BlockPublishUntilSubscriberAck: true}, logger)
	pipelineCtx, stopPipeline := context.WithCancel(context.Background())
	defer stopPipeline()
	messages, err := pubSub.Subscribe(pipelineCtx, cfg.sinkTopic)
	if err != nil {
		return err
	}
	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		process(messages, logger)
	}()

	sink := infra.NewWatermillSink[submission](pubSub, cfg.sinkTopic, cfg.sinkBatch, logger)
	if err := rel.Subscribe(sink); err != nil {
		return err
	}

	gateway := application.SubmissionGateway[submission]{
		Relay:   rel,
		Timeout: cfg.submitTimeout,
		Logger:  logger,
		Stats:   stats,
	}

	var submit http.Handler = relay.SubmitHandler(relay.HandlerOptions[submission]{
		Gateway:      gateway,
		Decode:       decodeSubmission,
		ItemID:       func(s submission) string { return s.ID },
		MaxBodyBytes: cfg.maxBodyBytes,
		RetryAfter:   cfg.retryAfter,
		Logger:       logger,
	})
	if cfg.rateEnabled {
		store := infra.NewStore(cfg.rateRPS, cfg.rateBurst)
		store.StartJanitor(ctx)
		submit = relay.Middleware(relay.Options{
			Store:               store,
			Stats:               stats,
			KeyHeader:           cfg.rateKeyHeader,
			TrustXForwardedFor:  cfg.trustXFF,
			RetryAfter:          cfg.retryAfter,
			AddRateLimitHeaders: cfg.addHeaders,
		})(submit)
	}

	mux := http.NewServeMux()
	mux.Handle("/submit", submit)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if rel.Cancelled() {
			http.Error(w, "relay closed", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if metrics != nil {
		mux.Handle("/metrics", promhttp.Handler())
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening", watermill.LogFields{
		"addr":           cfg.listenAddr,
		"buffer_size":    cfg.bufferSize,
		"max_batch":      cfg.maxBatch,
		"submit_timeout": cfg.submitTimeout.String(),
		"sink_topic":     cfg.sinkTopic,
		"sink_batch":     cfg.sinkBatch,
		"rate_enabled":   cfg.rateEnabled,
		"stats_redis":    cfg.rateStatsEnabled,
	})

	serveErr := srv.ListenAndServe()
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}

	// Sem novas submissões: encerra o relay (itens pendentes são descartados)
	// e só então derruba o pipeline, que pode estar segurando um publish.
	rel.Cancel()
	select {
	case <-rel.Done():
	case <-time.After(10 * time.Second):
		logger.Error("relay did not stop in time", nil, nil)
	}
	_ = pubSub.Close()
	stopPipeline()
	<-pipelineDone

	logger.Info("gateway stopped", watermill.LogFields{
		"published": sink.Published(),
		"failed":    sink.Failed(),
	})
	return serveErr
}

// process é o ponto de entrega ao pipeline de processamento. Aqui só registra
// e confirma; lotes, fan-out etc. ficam a cargo de quem consome o tópico.
func process(messages <-chan *message.Message, logger watermill.LoggerAdapter) {
	for msg := range messages {
		logger.Debug("submission received downstream", watermill.LogFields{
			"message_uuid": msg.UUID,
			"bytes":        len(msg.Payload),
		})
		msg.Ack()
	}
}
