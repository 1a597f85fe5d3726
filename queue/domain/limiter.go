package domain

import "context"

// Limiter ritma a admissão de chamadas ao upstream.
//
// Observação: a implementação pode ser token-bucket, leaky-bucket, etc.
// A camada de infra usa golang.org/x/time/rate.
type Limiter interface {
	// Wait bloqueia até haver um token ou até o ctx encerrar.
	Wait(ctx context.Context) error
}

// SlotPool representa um recurso com capacidade finita (chamadas simultâneas em voo).
//
// A semântica é: Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}

// SessionRegistry guarda as flags de cancelamento por sessão.
// Cancelled deve ser O(1) e seguro para uso concorrente.
type SessionRegistry interface {
	Cancel(session, reason string)
	Cancelled(session string) (reason string, ok bool)
}
