package pacing

import (
	"context"
	"testing"
	"time"
)

func TestNewFromConfig_MutuallyExclusive(t *testing.T) {
	_, err := NewFromConfig(true, time.Second, true, 0, time.Second)
	if err == nil {
		t.Fatal("expected error when both delay and jitter are set")
	}
}

func TestNewFromConfig_None(t *testing.T) {
	g, err := NewFromConfig(false, 0, false, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.mode != None {
		t.Errorf("expected None mode, got %v", g.mode)
	}
}

func TestNewJitter_InvalidRange(t *testing.T) {
	_, err := NewJitter(5*time.Second, 1*time.Second)
	if err == nil {
		t.Fatal("expected error when jitter max < min")
	}
}

func TestGate_WaitNone(t *testing.T) {
	g := NewNone()
	start := time.Now()
	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("None gate should not wait, took %s", elapsed)
	}
}

func TestGate_WaitFixed(t *testing.T) {
	g, err := NewFixed(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	start := time.Now()
	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("expected at least 20ms wait, got %s", elapsed)
	}
}

func TestGate_WaitJitterWithinRange(t *testing.T) {
	g, err := NewJitter(10*time.Millisecond, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 20; i++ {
		d := g.next()
		if d < 10*time.Millisecond || d > 20*time.Millisecond {
			t.Errorf("jitter %s outside [10ms, 20ms]", d)
		}
	}
}

func TestGate_WaitCancelled(t *testing.T) {
	g, err := NewFixed(time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := g.Wait(ctx); err == nil {
		t.Fatal("expected context error")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("cancellation should return immediately, took %s", elapsed)
	}
}

func TestNewFixed_Negative(t *testing.T) {
	if _, err := NewFixed(-time.Second); err == nil {
		t.Fatal("expected error for negative delay")
	}
}
