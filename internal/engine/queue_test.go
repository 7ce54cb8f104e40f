package engine

import (
	"sync"
	"testing"
	"time"
)

func reviewItem(id string, tier SignificanceTier, sig float64) ReviewItem {
	return ReviewItem{DecisionID: id, ItemID: "item-" + id, Priority: tier, Significance: sig}
}

func TestQueuePriorityOrder(t *testing.T) {
	q := NewReviewQueue(time.Minute)
	q.Enqueue(reviewItem("low", TierLow, 1.0))
	q.Enqueue(reviewItem("critical", TierCritical, 9.0))
	q.Enqueue(reviewItem("medium", TierMedium, 4.0))

	want := []string{"critical", "medium", "low"}
	for _, id := range want {
		item, ok := q.Claim("reviewer-1")
		if !ok {
			t.Fatalf("queue empty, wanted %s", id)
		}
		if item.DecisionID != id {
			t.Fatalf("claimed %s, want %s", item.DecisionID, id)
		}
	}
}

func TestQueueAtMostOneClaimant(t *testing.T) {
	q := NewReviewQueue(time.Minute)
	q.Enqueue(reviewItem("only", TierHigh, 7.0))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		claims int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := q.Claim("reviewer"); ok {
				mu.Lock()
				claims++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if claims != 1 {
		t.Errorf("item claimed %d times, want exactly 1", claims)
	}
}

func TestQueueClaimTimeout(t *testing.T) {
	q := NewReviewQueue(time.Minute)
	now := at(12, 0)
	q.now = func() time.Time { return now }

	q.Enqueue(reviewItem("abandoned", TierHigh, 7.0))
	if _, ok := q.Claim("reviewer-1"); !ok {
		t.Fatal("initial claim failed")
	}

	// Still claimed: a second reviewer sees nothing.
	if _, ok := q.Claim("reviewer-2"); ok {
		t.Fatal("claimed item handed out twice inside the visibility timeout")
	}

	// Past the timeout the abandoned claim returns to the queue.
	now = now.Add(2 * time.Minute)
	item, ok := q.Claim("reviewer-2")
	if !ok {
		t.Fatal("expired claim did not return to the queue")
	}
	if item.DecisionID != "abandoned" {
		t.Errorf("claimed %s, want abandoned", item.DecisionID)
	}
}

func TestQueueRelease(t *testing.T) {
	q := NewReviewQueue(time.Minute)
	q.Enqueue(reviewItem("d1", TierMedium, 4.0))

	item, _ := q.Claim("reviewer-1")
	q.Release(item.DecisionID)

	if _, ok := q.Claim("reviewer-2"); !ok {
		t.Error("released item not claimable")
	}
}

func TestQueueResolveRemoves(t *testing.T) {
	q := NewReviewQueue(time.Minute)
	q.Enqueue(reviewItem("d1", TierMedium, 4.0))
	q.Resolve("d1")

	if q.Depth() != 0 {
		t.Errorf("depth = %d, want 0", q.Depth())
	}
	if _, ok := q.Claim("reviewer"); ok {
		t.Error("resolved item claimable")
	}
}

func TestQueueEnqueueIdempotent(t *testing.T) {
	q := NewReviewQueue(time.Minute)
	q.Enqueue(reviewItem("d1", TierMedium, 4.0))
	q.Enqueue(reviewItem("d1", TierMedium, 4.0))
	if q.Depth() != 1 {
		t.Errorf("depth = %d, want 1", q.Depth())
	}
}

func TestQueueSnapshotOrdered(t *testing.T) {
	q := NewReviewQueue(time.Minute)
	q.Enqueue(reviewItem("a", TierLow, 1.0))
	q.Enqueue(reviewItem("b", TierCritical, 9.0))
	q.Enqueue(reviewItem("c", TierCritical, 8.2))

	snap := q.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot len = %d, want 3", len(snap))
	}
	if snap[0].DecisionID != "b" || snap[1].DecisionID != "c" || snap[2].DecisionID != "a" {
		t.Errorf("snapshot order = %s,%s,%s", snap[0].DecisionID, snap[1].DecisionID, snap[2].DecisionID)
	}
}
