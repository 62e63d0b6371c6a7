package infra

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"relay-gateway/relay/domain"
)

// DefaultMaxBatch é o máximo de itens entregues por rodada quando
// WithMaxBatch não é informado.
const DefaultMaxBatch = 256

type terminalSignal int

const (
	signalNone terminalSignal = iota
	signalComplete
	signalError
)

type relayOptions struct {
	maxBatch int
	metrics  *Metrics
}

type RelayOption func(*relayOptions)

// WithMaxBatch limita quantos itens saem da fila por rodada de entrega.
// Demanda maior que isso é atendida em várias rodadas.
func WithMaxBatch(n int) RelayOption {
	return func(o *relayOptions) { o.maxBatch = n }
}

func WithMetrics(m *Metrics) RelayOption {
	return func(o *relayOptions) { o.metrics = m }
}

// BoundedRelay é uma fila FIFO de capacidade fixa com vários produtores e um
// único consumidor que puxa itens por crédito (demanda).
//
// Todo estado mutável (fila, demanda, estado) fica atrás de um único lock.
// Offer nunca espera por espaço: fila cheia devolve OutcomeRejected na hora.
// A entrega roda num worker próprio, iniciado por Subscribe, que emite os
// sinais do consumidor sempre em série.
type BoundedRelay[T any] struct {
	lock     *chanLock
	capacity int
	maxBatch int
	metrics  *Metrics

	// protegidos por lock
	buf         []T
	head        int
	size        int
	demand      int64
	subscribed  bool
	terminal    terminalSignal
	terminalErr error

	cancelled atomic.Bool
	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
}

// NewBoundedRelay cria um relay aberto com a capacidade informada.
func NewBoundedRelay[T any](capacity int, opts ...RelayOption) (*BoundedRelay[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidCapacity, capacity)
	}

	o := relayOptions{maxBatch: DefaultMaxBatch}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxBatch <= 0 {
		o.maxBatch = DefaultMaxBatch
	}

	return &BoundedRelay[T]{
		lock:     newChanLock(),
		capacity: capacity,
		maxBatch: o.maxBatch,
		metrics:  o.metrics,
		buf:      make([]T, capacity),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Offer tenta enfileirar item. Implementa domain.Offerer.
//
// O erro só é não-nil quando o ctx terminou antes de obter o lock
// (wrap de domain.ErrOfferAborted); nesse caso nada foi enfileirado.
func (r *BoundedRelay[T]) Offer(ctx context.Context, item T) (domain.Outcome, error) {
	if r.cancelled.Load() {
		r.metrics.observeOffer(domain.OutcomeClosed)
		return domain.OutcomeClosed, nil
	}
	if !r.lock.Lock(ctx) {
		return 0, fmt.Errorf("%w: %w", domain.ErrOfferAborted, ctx.Err())
	}

	var outcome domain.Outcome
	switch {
	case r.cancelled.Load():
		outcome = domain.OutcomeClosed
	case r.size >= r.capacity:
		outcome = domain.OutcomeRejected
	default:
		r.buf[(r.head+r.size)%r.capacity] = item
		r.size++
		r.metrics.setQueueDepth(r.size)
		outcome = domain.OutcomeAccepted
	}
	r.lock.Unlock()

	r.metrics.observeOffer(outcome)
	if outcome == domain.OutcomeAccepted {
		r.notify()
	}
	return outcome, nil
}

// RequestMore soma n à demanda pendente e dispara a entrega.
func (r *BoundedRelay[T]) RequestMore(n int64) error {
	if n < 0 {
		return domain.ErrInvalidDemand
	}
	if r.cancelled.Load() {
		return domain.ErrClosed
	}
	if n == 0 {
		return nil
	}

	r.lock.LockNow()
	if r.cancelled.Load() {
		r.lock.Unlock()
		return domain.ErrClosed
	}
	r.demand = addDemand(r.demand, n)
	r.metrics.setDemand(r.demand)
	r.lock.Unlock()

	r.notify()
	return nil
}

// Subscribe conecta o consumidor único e inicia o worker de entrega.
// OnSubscribe é chamado pelo próprio worker, antes de qualquer OnNext.
func (r *BoundedRelay[T]) Subscribe(sub domain.Subscriber[T]) error {
	if sub == nil {
		return domain.ErrSubscriberRequired
	}

	r.lock.LockNow()
	defer r.lock.Unlock()

	if r.cancelled.Load() {
		return domain.ErrClosed
	}
	if r.subscribed {
		return domain.ErrAlreadySubscribed
	}
	r.subscribed = true

	go r.deliver(sub)
	return nil
}

// Cancel encerra o relay: descarta a fila, zera a demanda e libera o
// consumidor, que recebe OnComplete uma única vez. Idempotente.
func (r *BoundedRelay[T]) Cancel() {
	r.cancel(signalComplete, nil)
}

// Done fecha quando o relay foi cancelado e o worker de entrega terminou.
func (r *BoundedRelay[T]) Done() <-chan struct{} {
	return r.done
}

func (r *BoundedRelay[T]) Capacity() int { return r.capacity }

func (r *BoundedRelay[T]) Cancelled() bool { return r.cancelled.Load() }

func (r *BoundedRelay[T]) Len() int {
	r.lock.LockNow()
	defer r.lock.Unlock()
	return r.size
}

func (r *BoundedRelay[T]) OutstandingDemand() int64 {
	r.lock.LockNow()
	defer r.lock.Unlock()
	return r.demand
}

func (r *BoundedRelay[T]) cancel(sig terminalSignal, err error) {
	r.lock.LockNow()
	if r.cancelled.Load() {
		r.lock.Unlock()
		return
	}
	r.cancelled.Store(true)

	clear(r.buf)
	r.head, r.size, r.demand = 0, 0, 0
	r.terminal, r.terminalErr = sig, err
	started := r.subscribed

	r.metrics.setQueueDepth(0)
	r.metrics.setDemand(0)
	r.lock.Unlock()

	close(r.stop)
	if !started {
		close(r.done)
	}
}

func (r *BoundedRelay[T]) notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *BoundedRelay[T]) deliver(sub domain.Subscriber[T]) {
	defer close(r.done)

	sub.OnSubscribe(&subscription[T]{relay: r})

	batch := make([]T, 0, min(r.maxBatch, r.capacity))
	for {
		select {
		case <-r.stop:
			r.finish(sub)
			return
		case <-r.wake:
		}

		for {
			batch = r.takeBatch(batch[:0])
			if len(batch) == 0 {
				break
			}
			for i := range batch {
				// Itens já retirados da fila são descartados se o relay foi cancelado no meio da rodada.
				if r.cancelled.Load() {
					clear(batch)
					r.finish(sub)
					return
				}
				sub.OnNext(batch[i])
			}
			r.metrics.observeDelivery(len(batch))
			clear(batch)
		}
	}
}

// takeBatch retira da cabeça da fila min(demanda, tamanho, maxBatch) itens.
func (r *BoundedRelay[T]) takeBatch(dst []T) []T {
	r.lock.LockNow()
	defer r.lock.Unlock()

	if r.cancelled.Load() {
		return dst
	}

	n := min(int64(r.size), r.demand, int64(r.maxBatch))
	var zero T
	for range n {
		dst = append(dst, r.buf[r.head])
		r.buf[r.head] = zero
		r.head = (r.head + 1) % r.capacity
		r.size--
	}
	if r.demand != domain.Unbounded {
		r.demand -= n
	}

	if n > 0 {
		r.metrics.setQueueDepth(r.size)
		r.metrics.setDemand(r.demand)
	}
	return dst
}

func (r *BoundedRelay[T]) finish(sub domain.Subscriber[T]) {
	r.lock.LockNow()
	sig, err := r.terminal, r.terminalErr
	r.lock.Unlock()

	switch sig {
	case signalComplete:
		sub.OnComplete()
	case signalError:
		sub.OnError(err)
	}
}

func addDemand(cur, n int64) int64 {
	if cur > domain.Unbounded-n {
		return domain.Unbounded
	}
	return cur + n
}

type subscription[T any] struct {
	relay *BoundedRelay[T]
}

// Request com n negativo é violação do consumidor: o relay é encerrado e o
// consumidor recebe OnError.
func (s *subscription[T]) Request(n int64) {
	if err := s.relay.RequestMore(n); errors.Is(err, domain.ErrInvalidDemand) {
		s.relay.cancel(signalError, fmt.Errorf("%w: got %d", err, n))
	}
}

func (s *subscription[T]) Cancel() {
	s.relay.cancel(signalNone, nil)
}
