package httpapi

import (
	"context"
	"testing"
	"time"
)

func TestInFlightTracker_Counts(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()
	tracker.Increment()
	if got := tracker.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
	tracker.Decrement()
	if got := tracker.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestInFlightTracker_WaitForZero(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()

	go func() {
		time.Sleep(20 * time.Millisecond)
		tracker.Decrement()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tracker.WaitForZero(ctx, time.Millisecond); err != nil {
		t.Errorf("WaitForZero() error = %v", err)
	}
}

func TestInFlightTracker_WaitForZeroTimeout(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := tracker.WaitForZero(ctx, time.Millisecond); err == nil {
		t.Error("WaitForZero() error = nil, want deadline exceeded")
	}
}
