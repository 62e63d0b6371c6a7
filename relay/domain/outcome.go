package domain

import "strconv"

// Outcome é o resultado de uma oferta ao relay.
//
// O valor zero não é um outcome válido: um relay que devolve zero sem erro
// está violando o protocolo.
type Outcome int

const (
	// OutcomeAccepted: o item entrou na fila e será entregue na ordem de chegada.
	OutcomeAccepted Outcome = iota + 1
	// OutcomeRejected: fila cheia. É sinal de controle (backpressure), não erro.
	OutcomeRejected
	// OutcomeClosed: o relay foi cancelado e nunca mais aceita itens.
	OutcomeClosed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeClosed:
		return "closed"
	default:
		return "unknown(" + strconv.Itoa(int(o)) + ")"
	}
}

// Status é o que o chamador do gateway enxerga. São exatamente três.
type Status int

const (
	StatusOK Status = iota
	StatusOverload
	StatusInternalError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusOverload:
		return "overload"
	case StatusInternalError:
		return "internal_error"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Motivos usados em Response.Reason.
const (
	ReasonAccepted          = "accepted"
	ReasonQueueFull         = "queue_full"
	ReasonAdmissionDenied   = "admission_denied"
	ReasonClosed            = "closed"
	ReasonTimeout           = "timeout"
	ReasonOfferFailed       = "offer_failed"
	ReasonProtocolViolation = "protocol_violation"
	ReasonRelayMissing      = "relay_missing"
)

// Response é a tradução de uma submissão para o chamador.
type Response struct {
	Status  Status
	Outcome Outcome
	Reason  string
	// Err é preenchido apenas quando Status == StatusInternalError.
	Err error
}
