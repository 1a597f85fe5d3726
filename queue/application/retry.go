package application

import (
	"errors"
	"time"

	"fare-monitor/faults"
	"fare-monitor/queue/domain"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy concentra a regra de retry. Só 429 e erros de rede são repetidos;
// MaxAttempts conta a primeira tentativa.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
	// Jitter é o fator de randomização (0..1) aplicado a cada intervalo.
	Jitter float64
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Base <= 0 {
		p.Base = 1 * time.Second
	}
	if p.Max < p.Base {
		p.Max = p.Base
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	return p
}

func (p RetryPolicy) Attempts() int { return p.withDefaults().MaxAttempts }

func (p RetryPolicy) ShouldRetry(kind domain.ResultKind, attempts int) bool {
	if kind != domain.ResultRateLimited && kind != domain.ResultNetworkError {
		return false
	}
	return attempts < p.withDefaults().MaxAttempts
}

// NewBackOff cria o backoff de uma unidade de trabalho. Cada requisição tem o
// seu, para que o backoff de uma chave nunca atrase outra.
func (p RetryPolicy) NewBackOff() *backoff.ExponentialBackOff {
	p = p.withDefaults()
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.Base,
		RandomizationFactor: p.Jitter,
		Multiplier:          2,
		MaxInterval:         p.Max,
	}
	b.Reset()
	return b
}

// Classify traduz o retorno de uma tentativa para o resultado etiquetado.
func Classify(out domain.Outcome, err error) (domain.Result, error) {
	if err != nil {
		if errors.Is(err, faults.ErrDecode) {
			return domain.Result{Kind: domain.ResultDecodeError}, err
		}
		if !errors.Is(err, faults.ErrNetwork) {
			err = faults.Network(err)
		}
		return domain.Result{Kind: domain.ResultNetworkError}, err
	}
	if f := out.Failure; f != nil {
		res := domain.Result{Kind: domain.ResultUpstreamError, Status: f.Status, Body: f.Body}
		if errors.Is(f, faults.ErrRateLimited) {
			res.Kind = domain.ResultRateLimited
		}
		return res, f
	}
	return domain.Result{Kind: domain.ResultOK, Payload: out.Payload}, nil
}
