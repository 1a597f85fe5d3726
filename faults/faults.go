// Package faults define a taxonomia de erros do núcleo de tarifas.
//
// Cada falha por requisição vira um erro tipado que pode ser comparado com
// errors.Is / errors.As. A camada de apresentação (fora deste módulo) usa
// KindOf para escolher a mensagem exibida ao usuário.
package faults

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrRateLimited      = errors.New("upstream rate limited")
	ErrUpstream         = errors.New("upstream error")
	ErrNetwork          = errors.New("network error")
	ErrSessionCancelled = errors.New("session cancelled")
	ErrDecode           = errors.New("decode error")
	ErrSchemaMigration  = errors.New("schema migration failed")
)

type Kind int

const (
	KindNone Kind = iota
	KindRateLimited
	KindUpstream
	KindNetwork
	KindSessionCancelled
	KindDecode
	KindSchemaMigration
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream_error"
	case KindNetwork:
		return "network_error"
	case KindSessionCancelled:
		return "session_cancelled"
	case KindDecode:
		return "decode_error"
	case KindSchemaMigration:
		return "schema_migration_failure"
	default:
		return "unknown"
	}
}

// KindOf classifica err. nil retorna KindNone.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrSessionCancelled):
		return KindSessionCancelled
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrSchemaMigration):
		return KindSchemaMigration
	default:
		return KindUnknown
	}
}

// UpstreamError carrega o status HTTP e o corpo (truncado) de uma falha esperada do upstream.
// Status 429 casa com ErrRateLimited; qualquer outro status casa com ErrUpstream.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream: HTTP %d", e.Status)
	}
	return fmt.Sprintf("upstream: HTTP %d: %s", e.Status, e.Body)
}

func (e *UpstreamError) Is(target error) bool {
	if e.Status == http.StatusTooManyRequests {
		return target == ErrRateLimited
	}
	return target == ErrUpstream
}

// CancelledError indica abandono cooperativo de uma sessão. Não deve ser logado como erro.
type CancelledError struct {
	Session string
	Reason  string
}

func (e *CancelledError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("session %s was cancelled", e.Session)
	}
	return fmt.Sprintf("session %s was cancelled (%s)", e.Session, e.Reason)
}

func (e *CancelledError) Is(target error) bool { return target == ErrSessionCancelled }

// Decode embrulha err como ErrDecode, com contexto.
func Decode(what string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrDecode, what)
	}
	return fmt.Errorf("%w: %s: %v", ErrDecode, what, err)
}

// Network embrulha err como ErrNetwork mantendo a causa acessível a errors.Is/As.
func Network(err error) error {
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
