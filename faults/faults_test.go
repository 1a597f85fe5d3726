package faults

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestUpstreamError_429MatchesRateLimited(t *testing.T) {
	err := fmt.Errorf("fetch: %w", &UpstreamError{Status: 429})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected 429 to match ErrRateLimited")
	}
	if errors.Is(err, ErrUpstream) {
		t.Fatalf("expected 429 not to match ErrUpstream")
	}
	if KindOf(err) != KindRateLimited {
		t.Fatalf("expected KindRateLimited, got %s", KindOf(err))
	}
}

func TestUpstreamError_OtherStatusMatchesUpstream(t *testing.T) {
	err := &UpstreamError{Status: 503, Body: "unavailable"}
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected 503 to match ErrUpstream")
	}
	var ue *UpstreamError
	if !errors.As(fmt.Errorf("x: %w", err), &ue) || ue.Status != 503 {
		t.Fatalf("expected errors.As to recover status")
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{&CancelledError{Session: "s1", Reason: "user_request"}, KindSessionCancelled},
		{Network(context.DeadlineExceeded), KindNetwork},
		{Decode("payload", errors.New("bad json")), KindDecode},
		{fmt.Errorf("open: %w", ErrSchemaMigration), KindSchemaMigration},
		{errors.New("boom"), KindUnknown},
	}
	for _, c := range cases {
		if got := KindOf(c.err); got != c.want {
			t.Fatalf("KindOf(%v) = %s, want %s", c.err, got, c.want)
		}
	}
}

func TestNetwork_KeepsCause(t *testing.T) {
	err := Network(context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected cause to be preserved")
	}
}
