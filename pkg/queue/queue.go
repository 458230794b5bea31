// Package queue implements the Event Queue: admit-time dedup and priority
// classification, a blocking priority-ordered consumer, and the durable
// last-spoken-event checkpoint. It owns the in-memory event set and the
// persisted checkpoint exclusively -- no other component mutates either.
package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/mwzkhalil/comv2/pkg/commentary"
	"github.com/mwzkhalil/comv2/pkg/state"
)

// AdmitResult is the outcome of Admit.
type AdmitResult int

const (
	Admitted AdmitResult = iota
	Duplicate
)

func (r AdmitResult) String() string {
	if r == Admitted {
		return "Admitted"
	}
	return "Duplicate"
}

// DefaultDedupSize is the default bound on the sliding dedup set (spec §4.5).
const DefaultDedupSize = 10000

// Queue is a thread-safe priority queue with FIFO tie-breaking within a
// priority level, admit-time dedup, and a durable checkpoint.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	closed   bool

	heap  priorityHeap
	seq   int64
	dedup *dedupSet

	store *state.Store
}

// New builds a Queue backed by the given checkpoint store. The dedup set
// starts empty; Admit consults the store's checkpoint directly to reject
// the last-spoken id.
func New(store *state.Store, dedupSize int) *Queue {
	if dedupSize <= 0 {
		dedupSize = DefaultDedupSize
	}
	q := &Queue{
		dedup: newDedupSet(dedupSize),
		store: store,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	heap.Init(&q.heap)
	return q
}

// Admit dedups and inserts an event at its already-classified Priority.
// Rejects as Duplicate if event_id has already been seen, or if it equals
// the persisted checkpoint. Ids are treated as opaque: an id that precedes
// the checkpoint is not detected unless the dedup set has seen it.
func (q *Queue) Admit(e commentary.Event) AdmitResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.dedup.seen(e.EventID) {
		return Duplicate
	}

	if cp := q.store.Checkpoint(); cp != nil && *cp == e.EventID {
		// Exact match against the last-committed id: this is the classic
		// reconnect-catch-up duplicate (spec §4.6). Record it in dedup so a
		// second arrival via a different path is also rejected, then bail.
		q.dedup.add(e.EventID)
		return Duplicate
	}

	q.dedup.add(e.EventID)
	q.seq++
	e.Seq = q.seq
	e.AdmittedAt = time.Now()

	heap.Push(&q.heap, e)
	q.notEmpty.Signal()
	return Admitted
}

// Next blocks until an event is available or the queue is closed (in which
// case it returns false). It returns the single highest-priority, oldest
// pending event.
func (q *Queue) Next(ctx context.Context) (commentary.Event, bool) {
	done := make(chan struct{})
	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.notEmpty.Broadcast()
				q.mu.Unlock()
			case <-done:
			}
		}()
		defer close(done)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.heap.Len() == 0 && !q.closed {
		if ctx != nil && ctx.Err() != nil {
			return commentary.Event{}, false
		}
		q.notEmpty.Wait()
	}

	if q.heap.Len() == 0 {
		return commentary.Event{}, false
	}

	e := heap.Pop(&q.heap).(commentary.Event)
	return e, true
}

// Commit advances last_spoken_event_id and persists the Runtime State.
// Returns the persistence error (if any); per spec §7 the in-memory
// checkpoint advances regardless so catch-up stays gap-free even if the
// write itself failed.
func (q *Queue) Commit(matchID, eventID string) error {
	return q.store.Commit(matchID, eventID, time.Now())
}

// Checkpoint reads the current last_spoken_event_id, or nil if none.
func (q *Queue) Checkpoint() *string {
	return q.store.Checkpoint()
}

// Close unblocks any pending Next call; subsequent Next calls return
// immediately with ok=false once the pending heap has drained.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.notEmpty.Broadcast()
	q.mu.Unlock()
}

// Len reports the number of pending (not-yet-dispatched) events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// priorityHeap orders by (Priority asc, Seq asc) -- smaller priority number
// wins, ties break FIFO by admission sequence.
type priorityHeap []commentary.Event

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].Seq < h[j].Seq
}
func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *priorityHeap) Push(x interface{}) {
	*h = append(*h, x.(commentary.Event))
}

func (h *priorityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
