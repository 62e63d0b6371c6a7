package domain

import (
	"context"
	"math"
)

// Unbounded é a demanda "infinita". Somar qualquer coisa a ela continua
// Unbounded e entregas não a decrementam.
const Unbounded int64 = math.MaxInt64

// Offerer é o lado do produtor: quem aceita (ou não) um item.
//
// Offer não espera por espaço na fila. A única espera permitida é pelo ponto
// de sincronização do relay, limitada pelo ctx.
type Offerer[T any] interface {
	Offer(ctx context.Context, item T) (Outcome, error)
}

// Subscriber é o consumidor único do relay (modelo reactive streams).
//
// Os sinais chegam sempre em série: OnSubscribe primeiro, depois zero ou mais
// OnNext, e no máximo um OnError ou OnComplete.
type Subscriber[T any] interface {
	OnSubscribe(s Subscription)
	OnNext(item T)
	OnError(err error)
	OnComplete()
}

// Subscription é o vínculo um-para-um entre o relay e o seu consumidor.
type Subscription interface {
	// Request concede mais n itens de crédito, somados ao que ainda não foi usado.
	Request(n int64)
	// Cancel retira o consumidor. Itens ainda na fila são descartados.
	Cancel()
}
