package engine

import (
	"sort"
	"sync"
	"time"
)

// ReviewItem is one decision waiting for human review.
type ReviewItem struct {
	DecisionID   string           `json:"decision_id"`
	ItemID       string           `json:"item_id"`
	Priority     SignificanceTier `json:"priority"`
	Significance float64          `json:"significance"`
	EnqueuedAt   time.Time        `json:"enqueued_at"`
}

// queuedItem tracks claim state alongside the item.
type queuedItem struct {
	item          ReviewItem
	claimedBy     string
	claimDeadline time.Time
}

// ReviewQueue orders review-required decisions by significance and hands
// them to reviewers with claim-then-release semantics: at most one reviewer
// holds a given item, and an abandoned claim returns to the queue when its
// visibility timeout lapses.
type ReviewQueue struct {
	mu      sync.Mutex
	items   map[string]*queuedItem // by decision ID
	timeout time.Duration
	now     func() time.Time // swappable for tests
}

// NewReviewQueue creates a queue with the given claim visibility timeout.
func NewReviewQueue(claimTimeout time.Duration) *ReviewQueue {
	if claimTimeout <= 0 {
		claimTimeout = 15 * time.Minute
	}
	return &ReviewQueue{
		items:   make(map[string]*queuedItem),
		timeout: claimTimeout,
		now:     time.Now,
	}
}

// Enqueue adds a review item. Re-enqueueing the same decision is a no-op.
func (q *ReviewQueue) Enqueue(item ReviewItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.items[item.DecisionID]; ok {
		return
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = q.now()
	}
	q.items[item.DecisionID] = &queuedItem{item: item}
}

// Claim hands the highest-priority unclaimed item to a reviewer, or returns
// false when nothing is available. Expired claims are reclaimed here.
func (q *ReviewQueue) Claim(reviewer string) (ReviewItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var best *queuedItem
	for _, qi := range q.items {
		if qi.claimedBy != "" && qi.claimDeadline.After(now) {
			continue // held by someone else
		}
		if best == nil || higherPriority(qi.item, best.item) {
			best = qi
		}
	}
	if best == nil {
		return ReviewItem{}, false
	}

	best.claimedBy = reviewer
	best.claimDeadline = now.Add(q.timeout)
	return best.item, true
}

// Release returns a claimed item to the queue without resolving it.
func (q *ReviewQueue) Release(decisionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if qi, ok := q.items[decisionID]; ok {
		qi.claimedBy = ""
		qi.claimDeadline = time.Time{}
	}
}

// Resolve removes an item once its review outcome is recorded.
func (q *ReviewQueue) Resolve(decisionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.items, decisionID)
}

// Depth returns the number of unresolved items, claimed or not.
func (q *ReviewQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns the unresolved items in priority order.
func (q *ReviewQueue) Snapshot() []ReviewItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]ReviewItem, 0, len(q.items))
	for _, qi := range q.items {
		out = append(out, qi.item)
	}
	sort.SliceStable(out, func(i, j int) bool { return higherPriority(out[i], out[j]) })
	return out
}

// higherPriority orders by tier, then raw significance, then age.
func higherPriority(a, b ReviewItem) bool {
	if ra, rb := tierRank(a.Priority), tierRank(b.Priority); ra != rb {
		return ra > rb
	}
	if a.Significance != b.Significance {
		return a.Significance > b.Significance
	}
	return a.EnqueuedAt.Before(b.EnqueuedAt)
}
