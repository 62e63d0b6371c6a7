// utilitário pequeno para formatação rápida/consistente de valores numéricos em headers.
//    Evita puxar fmt só para formatação simples e padroniza o float
//    (strconv.FormatFloat) sem notação científica em valores comuns.

package relay

import (
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatRetryAfter arredonda para cima: Retry-After 0 faria o cliente repetir na hora.
func formatRetryAfter(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return formatInt(secs)
}
