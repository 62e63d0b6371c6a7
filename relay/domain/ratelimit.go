package domain

// Contratos de admissão por cliente, aplicados antes da oferta ao relay.

import "time"

type Key string

// Limiter decide se uma submissão pode seguir agora.
//
// A camada de infra usa token bucket (golang.org/x/time/rate).
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave (ex: IP, API key).
type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	RetryAfter time.Duration
}
