package relay

import (
	"net/http"

	"relay-gateway/relay/domain"
	"relay-gateway/relay/infra"
)

type reply struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	ID     string `json:"id,omitempty"`
}

// statusCode mapeia o Response para um status HTTP.
//
// OK -> 200, Overload -> 429, InternalError -> 500. Relay fechado vira 503:
// continua na classe 5xx, mas sinaliza que repetir aqui não adianta.
func statusCode(resp domain.Response) int {
	switch resp.Status {
	case domain.StatusOK:
		return http.StatusOK
	case domain.StatusOverload:
		return http.StatusTooManyRequests
	default:
		if resp.Reason == domain.ReasonClosed {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
}

func writeReply(w http.ResponseWriter, code int, body reply) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_ = infra.EncodeJSON(w, body)
}
