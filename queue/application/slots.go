package application

import (
	"context"
	"errors"
	"time"

	"fare-monitor/queue/domain"
)

// ErrSlotTimeout: nenhuma vaga de envio liberou dentro de Wait.
var ErrSlotTimeout = errors.New("no upstream slot available")

// SlotGate limita chamadas simultâneas ao upstream. Sem Pool não há limite.
type SlotGate struct {
	Pool domain.SlotPool
	// Wait <= 0 espera até ctx terminar.
	Wait time.Duration
}

// Acquire devolve a função de liberação da vaga. Em falha devolve ErrSlotTimeout
// (o trabalho pode voltar para a fila) ou o erro de ctx (quem pediu desistiu).
func (g SlotGate) Acquire(ctx context.Context) (func(), error) {
	if g.Pool == nil {
		return func() {}, nil
	}
	acqCtx := ctx
	if g.Wait > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, g.Wait)
		defer cancel()
	}
	if release, ok := g.Pool.Acquire(acqCtx); ok {
		return release, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrSlotTimeout
}
