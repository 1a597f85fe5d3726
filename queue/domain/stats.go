package domain

import (
	"context"
	"time"
)

// StatsEvent representa o desfecho de uma tentativa (Retry=true) ou de uma
// requisição inteira na fila.
//
// Observação: cuidado com cardinalidade (ex.: salvar Session sem controle pode
// explodir o número de séries/chaves em uma base como Redis/Prometheus).
type StatsEvent struct {
	RequestID string
	Session   string
	Kind      ResultKind
	Attempts  int
	Retry     bool

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas da fila.
//
// Implementações podem armazenar em Redis, Prometheus, memória, etc.
// A fila trata erro como best-effort (não derruba a requisição).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
