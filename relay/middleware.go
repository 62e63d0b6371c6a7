package relay

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"relay-gateway/relay/application"
	"relay-gateway/relay/domain"
)

type KeyFunc func(r *http.Request) string

type clientKeyCtx struct{}

// ClientKey retorna a chave do cliente resolvida pelo Middleware, ou "".
func ClientKey(ctx context.Context) domain.Key {
	k, _ := ctx.Value(clientKeyCtx{}).(domain.Key)
	return k
}

func withClientKey(ctx context.Context, key domain.Key) context.Context {
	return context.WithValue(ctx, clientKeyCtx{}, key)
}

// Options configura a admissão por cliente na frente do endpoint de submissão.
type Options struct {
	Store               domain.LimiterStore
	Stats               domain.StatsStore
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Middleware resolve a chave do cliente, anota no contexto e aplica a
// admissão. Admissão negada é sobrecarga: 429 + Retry-After, e a submissão
// nunca chega ao relay.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	adm := application.Admission{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				if ri, ok := opts.Store.(rateInfo); ok {
					w.Header().Set("X-RateLimit-RPS", formatFloat(ri.RPS()))
					w.Header().Set("X-RateLimit-Burst", formatInt(ri.Burst()))
				}
			}

			dec := adm.Decide(domain.Key(key))
			if !dec.Allowed {
				if opts.Stats != nil {
					_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
						Key:    domain.Key(key),
						Status: domain.StatusOverload,
						Reason: domain.ReasonAdmissionDenied,
						Method: r.Method,
						Path:   r.URL.Path,
						At:     time.Now(),
					})
				}
				w.Header().Set("Retry-After", formatRetryAfter(dec.RetryAfter))
				writeReply(w, http.StatusTooManyRequests, reply{
					Status: domain.StatusOverload.String(),
					Reason: domain.ReasonAdmissionDenied,
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(withClientKey(r.Context(), domain.Key(key))))
		})
	}
}
