package app

import (
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/metrics"
)

// BranchKey is the scheduling key: jobs sharing a key run serially, FIFO.
type BranchKey struct {
	TenantID string
	Branch   string
}

type branchQueue struct {
	items   []JobRef
	running bool
}

// BranchQueues maintains a FIFO queue and a running flag per
// (tenant, branch) key. Keys are visited in a stable round-robin order so
// that no key is starved while resources are available.
type BranchQueues struct {
	byKey map[BranchKey]*branchQueue
	order []BranchKey // insertion order of live keys
	start int         // round-robin cursor into order
}

// NewBranchQueues creates an empty queue set.
func NewBranchQueues() *BranchQueues {
	return &BranchQueues{
		byKey: make(map[BranchKey]*branchQueue),
	}
}

// Enqueue appends a ready job to its key's queue.
func (q *BranchQueues) Enqueue(key BranchKey, ref JobRef) {
	bq, ok := q.byKey[key]
	if !ok {
		bq = &branchQueue{}
		q.byKey[key] = bq
		q.order = append(q.order, key)
	}
	bq.items = append(bq.items, ref)
	metrics.QueueDepth.WithLabelValues(key.TenantID, key.Branch).Set(float64(len(bq.items)))
}

// TakeIfIdle pops the head of the key's queue and marks the key running,
// but only when the queue is non-empty and nothing on the key is running.
func (q *BranchQueues) TakeIfIdle(key BranchKey) (JobRef, bool) {
	bq, ok := q.byKey[key]
	if !ok || bq.running || len(bq.items) == 0 {
		return JobRef{}, false
	}
	ref := bq.items[0]
	bq.items = bq.items[1:]
	bq.running = true
	metrics.QueueDepth.WithLabelValues(key.TenantID, key.Branch).Set(float64(len(bq.items)))
	return ref, true
}

// MarkDone clears the key's running flag.
func (q *BranchQueues) MarkDone(key BranchKey) {
	if bq, ok := q.byKey[key]; ok {
		bq.running = false
	}
}

// Remove deletes a specific queued job, preserving FIFO order of the rest.
// Returns true if the job was queued.
func (q *BranchQueues) Remove(key BranchKey, ref JobRef) bool {
	bq, ok := q.byKey[key]
	if !ok {
		return false
	}
	for i, item := range bq.items {
		if item == ref {
			bq.items = append(bq.items[:i], bq.items[i+1:]...)
			metrics.QueueDepth.WithLabelValues(key.TenantID, key.Branch).Set(float64(len(bq.items)))
			return true
		}
	}
	return false
}

// Depth returns the queue length for a key.
func (q *BranchQueues) Depth(key BranchKey) int {
	if bq, ok := q.byKey[key]; ok {
		return len(bq.items)
	}
	return 0
}

// Running reports whether a job on the key is currently running.
func (q *BranchQueues) Running(key BranchKey) bool {
	if bq, ok := q.byKey[key]; ok {
		return bq.running
	}
	return false
}

// TotalDepth returns the number of queued jobs across all keys.
func (q *BranchQueues) TotalDepth() int {
	total := 0
	for _, bq := range q.byKey {
		total += len(bq.items)
	}
	return total
}

// Depths returns the per-key queue depths for non-empty queues.
func (q *BranchQueues) Depths() map[BranchKey]int {
	out := make(map[BranchKey]int)
	for key, bq := range q.byKey {
		if len(bq.items) > 0 {
			out[key] = len(bq.items)
		}
	}
	return out
}

// RoundRobinKeys returns the live keys rotated so that iteration resumes
// after the last served key.
func (q *BranchQueues) RoundRobinKeys() []BranchKey {
	n := len(q.order)
	if n == 0 {
		return nil
	}
	if q.start >= n {
		q.start = 0
	}
	keys := make([]BranchKey, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, q.order[(q.start+i)%n])
	}
	return keys
}

// MarkServed advances the round-robin cursor past the given key.
func (q *BranchQueues) MarkServed(key BranchKey) {
	for i, k := range q.order {
		if k == key {
			q.start = (i + 1) % len(q.order)
			return
		}
	}
}

// GC drops keys that are empty and idle. Called once per scheduler tick.
func (q *BranchQueues) GC() {
	live := q.order[:0]
	for _, key := range q.order {
		bq := q.byKey[key]
		if bq == nil || (len(bq.items) == 0 && !bq.running) {
			delete(q.byKey, key)
			metrics.QueueDepth.DeleteLabelValues(key.TenantID, key.Branch)
			continue
		}
		live = append(live, key)
	}
	q.order = live
	if q.start >= len(q.order) {
		q.start = 0
	}
}
