package domain

import (
	"context"
	"errors"

	"fare-monitor/faults"
)

var ErrClosed = errors.New("request queue closed")

// maxFailureBody limita o corpo guardado de uma falha HTTP.
const maxFailureBody = 100

// Outcome é o retorno de uma unidade de trabalho: o payload decodificado OU
// uma falha HTTP esperada (429, outros 4xx/5xx). Falhas esperadas não são erros.
type Outcome struct {
	Payload []byte
	Failure *faults.UpstreamError
}

func OK(payload []byte) Outcome { return Outcome{Payload: payload} }

func HTTPFailure(status int, body string) Outcome {
	if len(body) > maxFailureBody {
		body = body[:maxFailureBody]
	}
	return Outcome{Failure: &faults.UpstreamError{Status: status, Body: body}}
}

// Work executa exatamente uma chamada HTTP ao upstream e deve ser idempotente,
// pois pode ser reexecutada após 429 ou erro de rede.
//
// Erros retornados são tratados como erro de rede (com retry), exceto os que
// casam com faults.ErrDecode (sem retry).
type Work func(ctx context.Context) (Outcome, error)

type ResultKind int

const (
	ResultOK ResultKind = iota
	ResultRateLimited
	ResultUpstreamError
	ResultNetworkError
	ResultDecodeError
	ResultCancelled
)

func (k ResultKind) String() string {
	switch k {
	case ResultOK:
		return "ok"
	case ResultRateLimited:
		return "rate_limited"
	case ResultUpstreamError:
		return "upstream_error"
	case ResultNetworkError:
		return "network_error"
	case ResultDecodeError:
		return "decode_error"
	case ResultCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result é o resultado etiquetado de Submit. Sucesso nunca se confunde com sentinela:
// só ResultOK carrega Payload.
type Result struct {
	Kind     ResultKind
	Payload  []byte
	Status   int
	Body     string
	Attempts int
}
