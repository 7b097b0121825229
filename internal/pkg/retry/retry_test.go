package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestPolicy_Do_SucceedsAfterRetries(t *testing.T) {
	p := Policy{MaxRetries: 3, Delay: time.Millisecond}
	var notified []int

	attempts, err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
		if attempt < 3 {
			return errBoom
		}
		return nil
	}, func(_ error, attempt int, _ time.Duration) {
		notified = append(notified, attempt)
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if len(notified) != 2 || notified[0] != 1 || notified[1] != 2 {
		t.Errorf("unexpected notifications: %v", notified)
	}
}

func TestPolicy_Do_Exhausted(t *testing.T) {
	p := Policy{MaxRetries: 3, Delay: time.Millisecond}

	attempts, err := p.Do(context.Background(), func(context.Context, int) error {
		return errBoom
	}, nil)

	if !errors.Is(err, errBoom) {
		t.Fatalf("expected last error, got %v", err)
	}
	if attempts != 4 {
		t.Errorf("expected 1 attempt + 3 retries, got %d", attempts)
	}
}

func TestPolicy_Do_ContextCancelled(t *testing.T) {
	p := Policy{MaxRetries: 10, Delay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := p.Do(ctx, func(context.Context, int) error { return errBoom }, nil)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestBudget(t *testing.T) {
	b := Policy{MaxRetries: 2, Delay: 5 * time.Second}.Budget()

	for i := 0; i < 2; i++ {
		d, ok := b.Next()
		if !ok || d != 5*time.Second {
			t.Fatalf("retry %d: got (%v, %v)", i, d, ok)
		}
	}
	if _, ok := b.Next(); ok {
		t.Fatal("expected budget to be exhausted")
	}
	if b.Used() != 2 || b.Remaining() != 0 {
		t.Errorf("used=%d remaining=%d", b.Used(), b.Remaining())
	}

	b.Reset()
	if b.Used() != 0 || b.Remaining() != 2 {
		t.Errorf("after reset used=%d remaining=%d", b.Used(), b.Remaining())
	}
	if _, ok := b.Next(); !ok {
		t.Error("expected retry after reset")
	}
}
