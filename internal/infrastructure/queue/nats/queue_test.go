package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docsearch/internal/core/domain"
)

func TestClassifyNATSError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "nil", err: nil},
		{name: "canceled", err: context.Canceled},
		{name: "no servers", err: fmt.Errorf("nats publish: %w", nats.ErrNoServers), retryable: true, record: true},
		{name: "closed", err: nats.ErrConnectionClosed, retryable: true, record: true},
		{name: "bad subject", err: nats.ErrBadSubject, record: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyNATSError(tc.err)
			if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	err := wrapTemporaryIfNeeded(nats.ErrTimeout)
	if !errors.Is(err, domain.ErrTemporary) || !errors.Is(err, nats.ErrTimeout) {
		t.Fatalf("expected temporary wrap, got %v", err)
	}
	if err := wrapTemporaryIfNeeded(nats.ErrBadSubject); errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("permanent error must not be temporary: %v", err)
	}
	if wrapTemporaryIfNeeded(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestHandleMessageDecodesRequest(t *testing.T) {
	var got domain.IngestRequest
	calls := 0
	handleMessage(context.Background(), []byte(`{"title":"Cats","text":"Cats purr.","enqueuedAt":"2026-01-02T03:04:05Z"}`),
		func(_ context.Context, req domain.IngestRequest) error {
			calls++
			got = req
			return nil
		})
	if calls != 1 {
		t.Fatalf("expected one handler call, got %d", calls)
	}
	if got.Title != "Cats" || got.Text != "Cats purr." || got.EnqueuedAt.Year() != 2026 {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestHandleMessageSkipsGarbageAndCancelled(t *testing.T) {
	calls := 0
	handler := func(context.Context, domain.IngestRequest) error {
		calls++
		return errors.New("boom")
	}
	handleMessage(context.Background(), []byte("not json"), handler)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	handleMessage(ctx, []byte(`{"title":"x","text":"y"}`), handler)

	if calls != 0 {
		t.Fatalf("handler must not run, got %d calls", calls)
	}
}

func TestNewRejectsEmptySubject(t *testing.T) {
	if _, err := New("nats://127.0.0.1:1", " "); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
}
