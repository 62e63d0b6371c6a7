package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"relay-gateway/relay/domain"
	"relay-gateway/relay/infra"

	"github.com/ThreeDotsLabs/watermill"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "relay-gateway"

// DefaultMaxBodyBytes limita o corpo de uma submissão quando MaxBodyBytes é 0.
const DefaultMaxBodyBytes = 1 << 20

// Submitter é o que o handler precisa do gateway.
// application.SubmissionGateway satisfaz esta interface.
type Submitter[T any] interface {
	SubmitKey(ctx context.Context, key domain.Key, item T) domain.Response
}

type HandlerOptions[T any] struct {
	Gateway Submitter[T]
	// Decode converte o request no item. Padrão: JSON (sonic) no corpo.
	Decode func(r *http.Request) (T, error)
	// ItemID, se informado, expõe o id do item no corpo e em X-Submission-ID.
	ItemID       func(item T) string
	MaxBodyBytes int64
	// RetryAfter vai no header Retry-After das respostas 429.
	RetryAfter time.Duration
	Logger     watermill.LoggerAdapter
}

// SubmitHandler traduz POSTs em submissões ao relay.
//
// Erro de decodificação é 400: não chega a ser uma submissão.
func SubmitHandler[T any](opts HandlerOptions[T]) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.Decode == nil {
		opts.Decode = decodeJSON[T]
	}
	if opts.Logger == nil {
		opts.Logger = watermill.NopLogger{}
	}

	tracer := otel.Tracer(tracerName)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeReply(w, http.StatusMethodNotAllowed, reply{Status: "method_not_allowed"})
			return
		}

		ctx, span := tracer.Start(r.Context(), "relay.Submit")
		defer span.End()

		r.Body = http.MaxBytesReader(w, r.Body, opts.MaxBodyBytes)
		item, err := opts.Decode(r.WithContext(ctx))
		if err != nil {
			code := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				code = http.StatusRequestEntityTooLarge
			}
			span.SetStatus(codes.Error, "decode")
			opts.Logger.Debug("Cannot decode submission", watermill.LogFields{"error": err.Error()})
			writeReply(w, code, reply{Status: "bad_request", Reason: http.StatusText(code)})
			return
		}

		if opts.Gateway == nil {
			span.SetStatus(codes.Error, domain.ReasonRelayMissing)
			writeReply(w, http.StatusInternalServerError, reply{
				Status: domain.StatusInternalError.String(),
				Reason: domain.ReasonRelayMissing,
			})
			return
		}

		resp := opts.Gateway.SubmitKey(ctx, ClientKey(r.Context()), item)

		span.SetAttributes(
			attribute.String("submission.status", resp.Status.String()),
			attribute.String("submission.reason", resp.Reason),
		)
		if resp.Status == domain.StatusInternalError {
			if resp.Err != nil {
				span.RecordError(resp.Err)
			}
			span.SetStatus(codes.Error, resp.Reason)
		}

		body := reply{Status: resp.Status.String(), Reason: resp.Reason}
		if opts.ItemID != nil && resp.Status == domain.StatusOK {
			body.ID = opts.ItemID(item)
			w.Header().Set("X-Submission-ID", body.ID)
		}
		if resp.Status == domain.StatusOverload {
			w.Header().Set("Retry-After", formatRetryAfter(opts.RetryAfter))
		}
		writeReply(w, statusCode(resp), body)
	})
}

func decodeJSON[T any](r *http.Request) (T, error) {
	var item T
	err := infra.DecodeJSON(r.Body, &item)
	return item, err
}
