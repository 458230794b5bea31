package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mwzkhalil/comv2/pkg/commentary"
	"github.com/mwzkhalil/comv2/pkg/state"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	st, err := state.Open(filepath.Join(t.TempDir(), "runtime_state.json"))
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	return New(st, 0)
}

func TestAdmitDedup(t *testing.T) {
	q := newTestQueue(t)
	e := commentary.Event{EventID: "e1", MatchID: "m1", Text: "Four runs!", Priority: commentary.PriorityNormal}

	if res := q.Admit(e); res != Admitted {
		t.Fatalf("expected Admitted, got %v", res)
	}
	if res := q.Admit(e); res != Duplicate {
		t.Fatalf("expected Duplicate on second admit, got %v", res)
	}
}

func TestAdmitRejectsAlreadyCommitted(t *testing.T) {
	q := newTestQueue(t)
	if err := q.Commit("m1", "e1"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	e := commentary.Event{EventID: "e1", MatchID: "m1", Text: "x", Priority: commentary.PriorityNormal}
	if res := q.Admit(e); res != Duplicate {
		t.Fatalf("expected Duplicate for already-committed id, got %v", res)
	}
}

func TestPriorityOrdering(t *testing.T) {
	q := newTestQueue(t)

	a := commentary.Event{EventID: "a", MatchID: "m", Text: "normal", Priority: commentary.PriorityNormal}
	b := commentary.Event{EventID: "b", MatchID: "m", Text: "special", Priority: commentary.PrioritySpecial}

	if res := q.Admit(a); res != Admitted {
		t.Fatalf("admit a: %v", res)
	}
	if res := q.Admit(b); res != Admitted {
		t.Fatalf("admit b: %v", res)
	}

	ctx := context.Background()
	first, ok := q.Next(ctx)
	if !ok {
		t.Fatal("expected an event")
	}
	if first.EventID != "b" {
		t.Fatalf("expected higher-priority event b first, got %s", first.EventID)
	}

	second, ok := q.Next(ctx)
	if !ok || second.EventID != "a" {
		t.Fatalf("expected a second, got %+v ok=%v", second, ok)
	}
}

func TestFIFOWithinPriority(t *testing.T) {
	q := newTestQueue(t)
	q.Admit(commentary.Event{EventID: "e1", MatchID: "m", Priority: commentary.PriorityNormal})
	q.Admit(commentary.Event{EventID: "e2", MatchID: "m", Priority: commentary.PriorityNormal})
	q.Admit(commentary.Event{EventID: "e3", MatchID: "m", Priority: commentary.PriorityNormal})

	ctx := context.Background()
	want := []string{"e1", "e2", "e3"}
	for _, id := range want {
		got, ok := q.Next(ctx)
		if !ok || got.EventID != id {
			t.Fatalf("expected %s, got %+v ok=%v", id, got, ok)
		}
	}
}

func TestNextBlocksThenDeliversOnAdmit(t *testing.T) {
	q := newTestQueue(t)

	type result struct {
		e  commentary.Event
		ok bool
	}
	resCh := make(chan result, 1)
	go func() {
		e, ok := q.Next(context.Background())
		resCh <- result{e, ok}
	}()

	time.Sleep(20 * time.Millisecond) // ensure Next is blocked before we admit
	q.Admit(commentary.Event{EventID: "late", MatchID: "m", Priority: commentary.PriorityNormal})

	select {
	case r := <-resCh:
		if !r.ok || r.e.EventID != "late" {
			t.Fatalf("unexpected result %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Next to unblock")
	}
}

func TestNextReturnsFalseWhenClosed(t *testing.T) {
	q := newTestQueue(t)

	resCh := make(chan bool, 1)
	go func() {
		_, ok := q.Next(context.Background())
		resCh <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-resCh:
		if ok {
			t.Fatal("expected Next to return ok=false after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Close to unblock Next")
	}
}

func TestNextHonorsContextCancellation(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	resCh := make(chan bool, 1)
	go func() {
		_, ok := q.Next(ctx)
		resCh <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ok := <-resCh:
		if ok {
			t.Fatal("expected Next to return ok=false after context cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cancellation to unblock Next")
	}
}

func TestDedupSetBoundedFIFOEviction(t *testing.T) {
	d := newDedupSet(2)
	d.add("a")
	d.add("b")
	if !d.seen("a") || !d.seen("b") {
		t.Fatal("expected a and b to be tracked")
	}
	d.add("c") // evicts "a"
	if d.seen("a") {
		t.Fatal("expected a to be evicted")
	}
	if !d.seen("b") || !d.seen("c") {
		t.Fatal("expected b and c to remain tracked")
	}
}

func TestCommitPersistsCheckpoint(t *testing.T) {
	q := newTestQueue(t)
	if err := q.Commit("m1", "e9"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	cp := q.Checkpoint()
	if cp == nil || *cp != "e9" {
		t.Fatalf("expected checkpoint e9, got %v", cp)
	}
}
