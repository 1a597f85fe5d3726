package infra

import (
	"context"

	"golang.org/x/time/rate"
)

// Bucket é o token bucket global (x/time/rate) que ritma todas as chamadas ao upstream.
type Bucket struct {
	lim   *rate.Limiter
	rps   rate.Limit
	burst int
}

// NewBucket cria um bucket com reposição de `rps` tokens por segundo e capacidade `burst`.
// rps <= 0 desliga o ritmo (rate.Inf).
func NewBucket(rps float64, burst int) *Bucket {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Bucket{lim: rate.NewLimiter(limit, burst), rps: limit, burst: burst}
}

func (b *Bucket) RPS() float64 { return float64(b.rps) }
func (b *Bucket) Burst() int   { return b.burst }

// Wait implementa domain.Limiter.
func (b *Bucket) Wait(ctx context.Context) error {
	return b.lim.Wait(ctx)
}

// Tokens devolve os tokens disponíveis agora (para métricas/progresso).
func (b *Bucket) Tokens() float64 {
	return b.lim.Tokens()
}
