// Package domain define contratos e tipos de domínio do relay de submissões.
//
// Este pacote não depende de net/http nem de implementações concretas.
// Aqui ficam o Outcome devolvido por uma oferta, o Response que o gateway
// entrega ao chamador, os contratos de stream (Subscriber/Subscription) e os
// erros sentinela usados por todas as camadas.
package domain
