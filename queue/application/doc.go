// Package application contém os casos de uso (regras de aplicação) da fila:
// classificação do desfecho de uma tentativa, decisão de retry com backoff
// exponencial + jitter e aquisição de vagas de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: RetryPolicy.ShouldRetry(kind, attempts) diz se a unidade de trabalho volta à fila.
package application
