package main

import (
	"context"
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
)

type event struct {
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
}

// printer é um consumidor mínimo: pede um item por vez e simula trabalho lento,
// para que a fila encha e o 429 apareça com poucos requests.
type printer struct {
	sub    domain.Subscription
	logger watermill.LoggerAdapter
}

func (p *printer) OnSubscribe(s domain.Subscription) {
	p.sub = s
	s.Request(1)
}

func (p *printer) OnNext(ev event) {
	time.Sleep(200 * time.Millisecond)
	p.logger.Info("event processed", watermill.LogFields{"recipient": ev.Recipient})
	p.sub.Request(1)
}

func (p *printer) OnError(err error) { p.logger.Error("relay failed", err, nil) }
func (p *printer) OnComplete()       { p.logger.Info("relay completed", nil) }

func main() {
	// Exemplo: relay embutido direto no seu webserver, consumidor no mesmo processo.
	logger := watermill.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	rel, err := infra.NewBoundedRelay[event](8)
	if err != nil {
		logger.Error("relay error", err, nil)
		os.Exit(1)
	}
	if err := rel.Subscribe(&printer{logger: logger}); err != nil {
		logger.Error("subscribe error", err, nil)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := infra.NewStore(5, 10)
	store.StartJanitor(ctx)

	mux := http.NewServeMux()
	mux.Handle("/events", relay.Middleware(relay.Options{
		Store:               store,
		KeyHeader:           "X-Api-Key", // ou vazio para usar IP
		TrustXForwardedFor:  true,
		AddRateLimitHeaders: true,
	})(relay.SubmitHandler(relay.HandlerOptions[event]{
		Gateway: application.SubmissionGateway[event]{
			Relay:   rel,
			Timeout: 500 * time.Millisecond,
			Logger:  logger,
		},
		Logger: logger,
	})))

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		rel.Cancel()
	}()

	logger.Info("example server listening", watermill.LogFields{"addr": addr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", err, nil)
		os.Exit(1)
	}
	<-rel.Done()
}
