package infra

import (
	"context"
	"sync/atomic"

	"fare-monitor/queue/domain"
)

// ChanPool é um semáforo baseado em channel que limita as chamadas em voo.
type ChanPool struct {
	sem      chan struct{}
	inflight atomic.Int64
}

var _ domain.SlotPool = (*ChanPool)(nil)

// NewChanPool cria um pool simples baseado em channel com capacidade `max`.
func NewChanPool(max int) *ChanPool {
	if max <= 0 {
		max = 1
	}
	return &ChanPool{sem: make(chan struct{}, max)}
}

func (p *ChanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		p.inflight.Add(1)
		var once atomic.Bool
		return func() {
			if once.CompareAndSwap(false, true) {
				p.inflight.Add(-1)
				<-p.sem
			}
		}, true
	case <-ctx.Done():
		return nil, false
	}
}

func (p *ChanPool) Capacity() int   { return cap(p.sem) }
func (p *ChanPool) InFlight() int64 { return p.inflight.Load() }
