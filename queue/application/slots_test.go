package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

// waitPool só libera quando ctx termina, como um pool sempre cheio.
type waitPool struct{}

func (waitPool) Acquire(ctx context.Context) (func(), bool) {
	<-ctx.Done()
	return nil, false
}

type countingPool struct{ n int }

func (p *countingPool) Acquire(context.Context) (func(), bool) {
	p.n++
	return func() {}, true
}

func TestSlotGate_NoPoolIsUnlimited(t *testing.T) {
	release, err := SlotGate{}.Acquire(context.Background())
	if err != nil {
		t.Fatalf("expected slot, got %v", err)
	}
	release()
}

func TestSlotGate_TimeoutIsRetryable(t *testing.T) {
	g := SlotGate{Pool: waitPool{}, Wait: 10 * time.Millisecond}
	_, err := g.Acquire(context.Background())
	if !errors.Is(err, ErrSlotTimeout) {
		t.Fatalf("expected ErrSlotTimeout, got %v", err)
	}
}

func TestSlotGate_CallerCancelIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := SlotGate{Pool: waitPool{}, Wait: time.Second}
	_, err := g.Acquire(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSlotGate_DelegatesToPool(t *testing.T) {
	p := &countingPool{}
	if _, err := (SlotGate{Pool: p}).Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if p.n != 1 {
		t.Fatalf("expected one pool call, got %d", p.n)
	}
}
