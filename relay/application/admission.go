package application

import (
	"time"

	"relay-gateway/relay/domain"
)

// Admission concentra a regra de admissão por cliente, aplicada antes de a
// submissão chegar ao relay.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Admission struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (a Admission) Decide(key domain.Key) domain.Decision {
	if a.Store == nil {
		return domain.Decision{Allowed: true}
	}
	if a.RetryAfter <= 0 {
		a.RetryAfter = 1 * time.Second
	}

	lim := a.Store.Get(key)
	if lim == nil || lim.Allow() {
		return domain.Decision{Allowed: true}
	}
	return domain.Decision{Allowed: false, RetryAfter: a.RetryAfter}
}
