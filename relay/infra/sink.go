package infra

import (
	"sync"
	"sync/atomic"

	"relay-gateway/relay/domain"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// MetadataSubmissionID é a chave de metadata com o id gerado pelo sink.
const MetadataSubmissionID = "relay_submission_id"

// WatermillSink é um consumidor do relay que publica cada item entregue como
// mensagem watermill num tópico.
//
// O crédito é pedido em lotes de batch itens e reposto quando metade do lote
// foi consumida. Publicar é síncrono: um publisher lento segura a demanda e,
// portanto, o relay enche e passa a rejeitar.
type WatermillSink[T any] struct {
	publisher message.Publisher
	topic     string
	batch     int64
	refill    int64
	logger    watermill.LoggerAdapter

	// usados apenas pelo worker de entrega do relay
	sub      domain.Subscription
	consumed int64

	published atomic.Int64
	failed    atomic.Int64

	doneOnce sync.Once
	done     chan struct{}
	err      error
}

func NewWatermillSink[T any](publisher message.Publisher, topic string, batch int, logger watermill.LoggerAdapter) *WatermillSink[T] {
	if batch <= 0 {
		batch = 1
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &WatermillSink[T]{
		publisher: publisher,
		topic:     topic,
		batch:     int64(batch),
		refill:    max(int64(batch)/2, 1),
		logger:    logger.With(watermill.LogFields{"topic": topic}),
		done:      make(chan struct{}),
	}
}

func (s *WatermillSink[T]) OnSubscribe(sub domain.Subscription) {
	s.sub = sub
	s.logger.Info("Sink attached to relay", watermill.LogFields{"batch": s.batch})
	sub.Request(s.batch)
}

func (s *WatermillSink[T]) OnNext(item T) {
	s.publish(item)

	s.consumed++
	if s.consumed >= s.refill {
		s.sub.Request(s.consumed)
		s.consumed = 0
	}
}

func (s *WatermillSink[T]) publish(item T) {
	payload, err := MarshalJSON(item)
	if err != nil {
		s.failed.Add(1)
		s.logger.Error("Cannot encode relay item", err, nil)
		return
	}

	id := NewID()
	msg := message.NewMessage(id, payload)
	msg.Metadata.Set(MetadataSubmissionID, id)

	if err := s.publisher.Publish(s.topic, msg); err != nil {
		s.failed.Add(1)
		s.logger.Error("Cannot publish relay item", err, watermill.LogFields{"message_uuid": id})
		return
	}
	s.published.Add(1)
}

func (s *WatermillSink[T]) OnError(err error) {
	s.logger.Error("Relay terminated with error", err, nil)
	s.finish(err)
}

func (s *WatermillSink[T]) OnComplete() {
	s.logger.Info("Relay completed", watermill.LogFields{"published": s.published.Load(), "failed": s.failed.Load()})
	s.finish(nil)
}

func (s *WatermillSink[T]) finish(err error) {
	s.doneOnce.Do(func() {
		s.err = err
		close(s.done)
	})
}

// Done fecha quando o relay sinalizou OnComplete ou OnError.
func (s *WatermillSink[T]) Done() <-chan struct{} { return s.done }

// Err retorna o erro terminal. Só é significativo depois de Done.
func (s *WatermillSink[T]) Err() error { return s.err }

func (s *WatermillSink[T]) Published() int64 { return s.published.Load() }

func (s *WatermillSink[T]) Failed() int64 { return s.failed.Load() }
