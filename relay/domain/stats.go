package domain

import (
	"context"
	"time"
)

// StatsEvent registra o resultado de uma submissão.
//
// Method/Path são strings genéricas: o gateway não sabe nada de HTTP e deixa
// ambos vazios, quem preenche é o adapter.
//
// Cuidado com cardinalidade ao persistir Key/Path.
type StatsEvent struct {
	Key    Key
	Status Status
	Reason string

	Method string
	Path   string

	Latency time.Duration
	At      time.Time
}

// StatsStore é a estratégia de persistência das estatísticas.
//
// Quem chama trata erro como best-effort (não derruba a submissão).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
