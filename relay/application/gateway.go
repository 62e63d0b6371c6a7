package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"relay-gateway/relay/domain"

	"github.com/ThreeDotsLabs/watermill"
)

// SubmissionGateway é a fachada síncrona que cada produtor chama.
//
// Uma chamada a Submit faz no máximo uma oferta ao relay, sem buffer próprio
// e sem retry: repetir é decisão de quem chama.
type SubmissionGateway[T any] struct {
	Relay domain.Offerer[T]
	// Timeout limita a espera pela resposta do relay. Se <= 0, vale só o ctx.
	Timeout time.Duration
	Logger  watermill.LoggerAdapter
	// Stats recebe um evento por submissão (best-effort).
	Stats domain.StatsStore
}

// Submit oferece item ao relay e traduz o outcome para um Response.
//
//   - Accepted            -> StatusOK
//   - Rejected            -> StatusOverload
//   - Closed              -> StatusInternalError (reason "closed")
//   - timeout / falha     -> StatusInternalError
//   - outcome inesperado  -> StatusInternalError (reason "protocol_violation")
func (g SubmissionGateway[T]) Submit(ctx context.Context, item T) domain.Response {
	return g.SubmitKey(ctx, "", item)
}

// SubmitKey é Submit com a chave do cliente anotada nas estatísticas.
func (g SubmissionGateway[T]) SubmitKey(ctx context.Context, key domain.Key, item T) domain.Response {
	start := time.Now()
	resp := g.submit(ctx, item)
	g.record(ctx, key, resp, start)
	return resp
}

func (g SubmissionGateway[T]) submit(ctx context.Context, item T) domain.Response {
	logger := g.logger()

	if g.Relay == nil {
		logger.Error("Submission gateway has no relay", domain.ErrRelayRequired, nil)
		return internalError(domain.ReasonRelayMissing, 0, domain.ErrRelayRequired)
	}

	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	outcome, err := g.offer(ctx, item)
	if err != nil {
		reason := domain.ReasonOfferFailed
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			reason = domain.ReasonTimeout
		}
		logger.Error("Submission failed", err, watermill.LogFields{"reason": reason, "timeout": g.Timeout})
		return internalError(reason, outcome, err)
	}

	switch outcome {
	case domain.OutcomeAccepted:
		return domain.Response{Status: domain.StatusOK, Outcome: outcome, Reason: domain.ReasonAccepted}
	case domain.OutcomeRejected:
		logger.Debug("Submission rejected, relay at capacity", nil)
		return domain.Response{Status: domain.StatusOverload, Outcome: outcome, Reason: domain.ReasonQueueFull}
	case domain.OutcomeClosed:
		logger.Info("Submission refused, relay closed", nil)
		return internalError(domain.ReasonClosed, outcome, domain.ErrClosed)
	default:
		err := fmt.Errorf("%w: unexpected outcome %s", domain.ErrProtocolViolation, outcome)
		logger.Error("Relay protocol violation", err, watermill.LogFields{"defect": true, "outcome": int(outcome)})
		return internalError(domain.ReasonProtocolViolation, outcome, err)
	}
}

type offerResult struct {
	outcome domain.Outcome
	err     error
}

// offer chama o relay e espera no máximo até o ctx encerrar, mesmo que a
// implementação de Offer ignore o ctx. Uma oferta que termina depois disso
// não é repetida nem desfeita.
func (g SubmissionGateway[T]) offer(ctx context.Context, item T) (domain.Outcome, error) {
	if ctx.Done() == nil {
		return g.Relay.Offer(ctx, item)
	}

	res := make(chan offerResult, 1)
	go func() {
		outcome, err := g.Relay.Offer(ctx, item)
		res <- offerResult{outcome: outcome, err: err}
	}()

	select {
	case r := <-res:
		return r.outcome, r.err
	case <-ctx.Done():
		select {
		case r := <-res:
			return r.outcome, r.err
		default:
			return 0, ctx.Err()
		}
	}
}

func (g SubmissionGateway[T]) record(ctx context.Context, key domain.Key, resp domain.Response, start time.Time) {
	if g.Stats == nil {
		return
	}
	now := time.Now()
	// O ctx da submissão pode já ter expirado; estatística não deve depender dele.
	_ = g.Stats.Record(context.WithoutCancel(ctx), domain.StatsEvent{
		Key:     key,
		Status:  resp.Status,
		Reason:  resp.Reason,
		Latency: now.Sub(start),
		At:      now,
	})
}

func (g SubmissionGateway[T]) logger() watermill.LoggerAdapter {
	if g.Logger == nil {
		return watermill.NopLogger{}
	}
	return g.Logger
}

func internalError(reason string, outcome domain.Outcome, err error) domain.Response {
	return domain.Response{Status: domain.StatusInternalError, Outcome: outcome, Reason: reason, Err: err}
}
