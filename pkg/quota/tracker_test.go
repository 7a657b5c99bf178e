package quota

import (
	"testing"
	"time"

	"followcrawl/pkg/api"
)

func TestReserveDecrementsBudget(t *testing.T) {
	tracker := NewTracker()
	tracker.Observe(api.CategoryFollowerList, 3, time.Now().Add(15*time.Minute))

	for i := 0; i < 3; i++ {
		ok, wait := tracker.Reserve(api.CategoryFollowerList)
		if !ok {
			t.Errorf("Expected reservation %d to succeed, got wait %v", i+1, wait)
		}
	}

	if got := tracker.Remaining(api.CategoryFollowerList); got != 0 {
		t.Errorf("Expected remaining 0 after three reservations, got %d", got)
	}
}

func TestReserveExhaustedReturnsWait(t *testing.T) {
	tracker := NewTracker()
	resetAt := time.Now().Add(10 * time.Minute)
	tracker.Observe(api.CategoryFollowerList, 0, resetAt)

	ok, wait := tracker.Reserve(api.CategoryFollowerList)
	if ok {
		t.Fatal("Expected reservation to be denied when budget is exhausted")
	}
	if wait <= 0 {
		t.Errorf("Expected positive wait duration, got %v", wait)
	}
	if wait > 10*time.Minute {
		t.Errorf("Expected wait at most 10 minutes, got %v", wait)
	}
}

func TestReserveAfterResetAllowsProbe(t *testing.T) {
	tracker := NewTracker()
	tracker.Observe(api.CategoryProfile, 0, time.Now().Add(-time.Second))

	ok, _ := tracker.Reserve(api.CategoryProfile)
	if !ok {
		t.Error("Expected probe to be allowed once the reset time has passed")
	}
}

func TestPessimisticStartProbesImmediately(t *testing.T) {
	tracker := NewTracker()

	// Never observed: no budget, but no future reset either, so the first
	// call must go out as a probe.
	ok, _ := tracker.Reserve(api.CategoryFollowerList)
	if !ok {
		t.Error("Expected first reservation on a fresh tracker to be allowed as a probe")
	}
}

func TestObserveOverwritesLocalBookkeeping(t *testing.T) {
	tracker := NewTracker()
	tracker.Observe(api.CategoryProfile, 5, time.Now().Add(15*time.Minute))

	tracker.Reserve(api.CategoryProfile)
	tracker.Reserve(api.CategoryProfile)

	// Another token spent from the shared limit; the API report wins.
	tracker.Observe(api.CategoryProfile, 1, time.Now().Add(15*time.Minute))

	if got := tracker.Remaining(api.CategoryProfile); got != 1 {
		t.Errorf("Expected observed remaining 1 to overwrite local count, got %d", got)
	}

	ok, _ := tracker.Reserve(api.CategoryProfile)
	if !ok {
		t.Error("Expected reservation to succeed with one call remaining")
	}

	ok, wait := tracker.Reserve(api.CategoryProfile)
	if ok {
		t.Error("Expected reservation to be denied after observed budget is spent")
	}
	if wait <= 0 {
		t.Errorf("Expected positive wait, got %v", wait)
	}
}

func TestCategoriesAreIndependent(t *testing.T) {
	tracker := NewTracker()
	tracker.Observe(api.CategoryFollowerList, 0, time.Now().Add(10*time.Minute))
	tracker.Observe(api.CategoryProfile, 10, time.Now().Add(10*time.Minute))

	if ok, _ := tracker.Reserve(api.CategoryFollowerList); ok {
		t.Error("Expected follower list reservation to be denied")
	}
	if ok, _ := tracker.Reserve(api.CategoryProfile); !ok {
		t.Error("Expected profile reservation to succeed")
	}
}
