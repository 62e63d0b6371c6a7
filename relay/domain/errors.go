package domain

import "errors"

var (
	// ErrClosed indica que o relay foi cancelado e não aceita mais nada.
	// Difere de OutcomeRejected: sobrecarga passa, fechado não volta.
	ErrClosed = errors.New("relay: closed")

	// ErrOfferAborted indica que o ctx terminou antes de a oferta chegar ao
	// ponto de sincronização. Nada foi enfileirado.
	ErrOfferAborted = errors.New("relay: offer aborted before reaching the relay")

	// ErrInvalidDemand indica pedido de demanda negativa.
	ErrInvalidDemand = errors.New("relay: demand must be non-negative")

	// ErrAlreadySubscribed indica uma segunda tentativa de assinatura.
	ErrAlreadySubscribed = errors.New("relay: consumer already attached")

	ErrSubscriberRequired = errors.New("relay: subscriber is required")
	ErrInvalidCapacity    = errors.New("relay: capacity must be positive")

	// ErrProtocolViolation indica que o relay devolveu um outcome fora do
	// contrato. É defeito, não condição operacional.
	ErrProtocolViolation = errors.New("relay: protocol violation")

	ErrRelayRequired = errors.New("relay: relay is required")
)
