package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"telemetry-gateway/middleware/admission/domain"
)

func TestMemoryCounterStore_AdmitsUpToLimitThenDenies(t *testing.T) {
	s := NewMemoryCounterStore()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 5; i++ {
		out, err := s.CheckAndIncrement(context.Background(), "1.2.3.4", 5, 60*time.Second, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != domain.Admitted {
			t.Fatalf("call %d: expected Admitted", i+1)
		}
	}

	out, err := s.CheckAndIncrement(context.Background(), "1.2.3.4", 5, 60*time.Second, now.Add(10*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != domain.Denied {
		t.Fatalf("expected 6th call within the window to be Denied")
	}
}

func TestMemoryCounterStore_ResetsAfterWindow(t *testing.T) {
	s := NewMemoryCounterStore()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 6; i++ {
		_, _ = s.CheckAndIncrement(context.Background(), "k", 5, 60*time.Second, now)
	}

	out, err := s.CheckAndIncrement(context.Background(), "k", 5, 60*time.Second, now.Add(61*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != domain.Admitted {
		t.Fatalf("expected Admitted after the window expired")
	}

	rec, ok := s.Get("k")
	if !ok {
		t.Fatalf("expected record to exist")
	}
	if rec.RequestCount != 1 {
		t.Fatalf("expected count reset to 1, got %d", rec.RequestCount)
	}
	if rec.WindowStart != now.Add(61*time.Second).Unix() {
		t.Fatalf("expected window_start moved to reset time, got %d", rec.WindowStart)
	}
}

func TestMemoryCounterStore_ExactlyLimitAdmittedUnderConcurrency(t *testing.T) {
	const limit = 8
	s := NewMemoryCounterStore()
	now := time.Unix(1_700_000_000, 0)

	var wg sync.WaitGroup
	outcomes := make(chan domain.Outcome, 2*limit)
	start := make(chan struct{})

	for i := 0; i < 2*limit; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			out, err := s.CheckAndIncrement(context.Background(), "hot", limit, 60*time.Second, now)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			outcomes <- out
		}()
	}

	close(start)
	wg.Wait()
	close(outcomes)

	admitted, denied := 0, 0
	for out := range outcomes {
		if out == domain.Admitted {
			admitted++
		} else {
			denied++
		}
	}
	if admitted != limit || denied != limit {
		t.Fatalf("expected exactly %d Admitted and %d Denied, got %d/%d", limit, limit, admitted, denied)
	}
}

func TestMemoryCounterStore_KeysAreIndependent(t *testing.T) {
	s := NewMemoryCounterStore()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 5; i++ {
		_, _ = s.CheckAndIncrement(context.Background(), "a", 5, 60*time.Second, now)
	}
	if out, _ := s.CheckAndIncrement(context.Background(), "a", 5, 60*time.Second, now); out != domain.Denied {
		t.Fatalf("expected key a to be at its limit")
	}

	out, err := s.CheckAndIncrement(context.Background(), "b", 5, 60*time.Second, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != domain.Admitted {
		t.Fatalf("expected key b to be unaffected by key a")
	}
}

func TestMemoryCounterStore_CleanupRemovesStaleWindows(t *testing.T) {
	s := NewMemoryCounterStore(WithMemoryIdleTTL(1*time.Minute), WithMemoryCleanupEvery(0))
	old := time.Now().Add(-1 * time.Hour)

	_, _ = s.CheckAndIncrement(context.Background(), "k", 5, 60*time.Second, old)
	if _, ok := s.Get("k"); !ok {
		t.Fatalf("expected record before cleanup")
	}

	s.Cleanup()

	if _, ok := s.Get("k"); ok {
		t.Fatalf("expected stale record to be removed by cleanup")
	}
}
