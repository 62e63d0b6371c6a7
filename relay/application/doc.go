// Package application contém os casos de uso do relay de submissões.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: SubmissionGateway.Submit(ctx, item) devolve um domain.Response
// (ok / overload / internal error) e Admission.Decide(key) devolve uma Decision.
package application
