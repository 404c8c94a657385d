package breaker

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New("test", 3, 60*time.Second)
	failing := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := b.Call(func() error { return failing }); err != failing {
			t.Fatalf("call %d: expected underlying failure, got %v", i, err)
		}
	}

	snap := b.Snapshot()
	if snap.State != Open {
		t.Fatalf("state = %s, want %s", snap.State, Open)
	}
	if snap.FailureCount < 3 {
		t.Fatalf("failureCount = %d, want >= 3", snap.FailureCount)
	}
}

func TestBreaker_FastFailsWhenOpen(t *testing.T) {
	b := New("test", 1, 60*time.Second)
	_ = b.Call(func() error { return errors.New("boom") })

	if b.Snapshot().State != Open {
		t.Fatalf("expected open after 1 failure with threshold 1")
	}

	called := false
	err := b.Call(func() error { called = true; return nil })
	if called {
		t.Fatal("fn should not run while breaker is open")
	}
	if err == nil {
		t.Fatal("expected a fast-fail error")
	}
}

func TestBreaker_HalfOpenProbeSuccessCloses(t *testing.T) {
	b := New("test", 1, 10*time.Millisecond)
	_ = b.Call(func() error { return errors.New("boom") })
	if b.Snapshot().State != Open {
		t.Fatal("expected open")
	}

	time.Sleep(15 * time.Millisecond)

	if err := b.Call(func() error { return nil }); err != nil {
		t.Fatalf("probe should have succeeded: %v", err)
	}

	snap := b.Snapshot()
	if snap.State != Closed {
		t.Fatalf("state = %s, want %s", snap.State, Closed)
	}
	if snap.FailureCount != 0 {
		t.Fatalf("failureCount = %d, want 0", snap.FailureCount)
	}
}

func TestBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	b := New("test", 1, 10*time.Millisecond)
	_ = b.Call(func() error { return errors.New("boom") })
	time.Sleep(15 * time.Millisecond)

	probeErr := errors.New("still broken")
	if err := b.Call(func() error { return probeErr }); err != probeErr {
		t.Fatalf("expected underlying probe error unchanged, got %v", err)
	}

	if b.Snapshot().State != Open {
		t.Fatal("expected reopen after failed probe")
	}
}

func TestBreaker_ClosedResetsFailureCountAfterMonitoringPeriod(t *testing.T) {
	b := New("test", 5, 60*time.Second)
	b.monitoringPeriod = 10 * time.Millisecond

	_ = b.Call(func() error { return errors.New("boom") })
	if b.Snapshot().FailureCount != 1 {
		t.Fatal("expected 1 failure recorded")
	}

	time.Sleep(15 * time.Millisecond)

	if err := b.Call(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b.Snapshot().FailureCount != 0 {
		t.Fatal("expected failure count reset after monitoring period elapsed")
	}
}

func TestRegistry_SameNameReturnsSameInstance(t *testing.T) {
	r := NewRegistry()
	a := r.GetBreaker("polygon-balance", 3, 30*time.Second)
	b := r.GetBreaker("polygon-balance", 999, 999*time.Second) // ignored
	if a != b {
		t.Fatal("expected the same breaker instance for the same name")
	}
	if a.failureThreshold != 3 {
		t.Fatalf("failureThreshold = %d, want 3 (first-writer-wins)", a.failureThreshold)
	}
}

func TestRegistry_ResetAll(t *testing.T) {
	r := NewRegistry()
	a := r.GetBreaker("a", 1, time.Second)
	b := r.GetBreaker("b", 1, time.Second)
	_ = a.Call(func() error { return errors.New("boom") })
	_ = b.Call(func() error { return errors.New("boom") })

	r.ResetAll()

	for _, snap := range r.GetAllStates() {
		if snap.State != Closed || snap.FailureCount != 0 {
			t.Errorf("%s: expected reset, got state=%s failures=%d", snap.Name, snap.State, snap.FailureCount)
		}
	}
}

func TestRegistry_GetAllStatesSortedByName(t *testing.T) {
	r := NewRegistry()
	r.GetBreaker("zeta", 1, time.Second)
	r.GetBreaker("alpha", 1, time.Second)

	states := r.GetAllStates()
	if len(states) != 2 || states[0].Name != "alpha" || states[1].Name != "zeta" {
		t.Fatalf("unexpected order: %+v", states)
	}
}
