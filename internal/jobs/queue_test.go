package jobs

import (
	"testing"
	"time"
)

func TestQueueOrdersByWeight(t *testing.T) {
	q := NewQueue(10)
	if err := q.Push("low", 1); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := q.Push("urgent", 20); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := q.Push("high", 10); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := q.Push("medium", 5); err != nil {
		t.Fatalf("push: %v", err)
	}

	want := []string{"urgent", "high", "medium", "low"}
	for _, expected := range want {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("queue closed early")
		}
		if got != expected {
			t.Fatalf("expected %q, got %q", expected, got)
		}
	}
}

func TestQueueFIFOWithinWeight(t *testing.T) {
	q := NewQueue(10)
	for _, id := range []string{"first", "second", "third"} {
		if err := q.Push(id, 5); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	for _, expected := range []string{"first", "second", "third"} {
		got, ok := q.Pop()
		if !ok || got != expected {
			t.Fatalf("expected %q, got %q (ok=%v)", expected, got, ok)
		}
	}
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue(10)
	got := make(chan string, 1)
	go func() {
		id, ok := q.Pop()
		if ok {
			got <- id
		}
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case id := <-got:
		t.Fatalf("Pop returned %q before any push", id)
	default:
	}

	if err := q.Push("job-1", 5); err != nil {
		t.Fatalf("push: %v", err)
	}
	select {
	case id := <-got:
		if id != "job-1" {
			t.Fatalf("expected job-1, got %q", id)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not observe the push")
	}
}

func TestQueueCloseReleasesPop(t *testing.T) {
	q := NewQueue(10)
	released := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		released <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-released:
		if ok {
			t.Fatal("expected ok=false after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop still blocked after Close")
	}

	if err := q.Push("late", 5); err == nil {
		t.Fatal("expected Push to fail after Close")
	}
}

func TestQueueCloseAbandonsPending(t *testing.T) {
	q := NewQueue(10)
	if err := q.Push("pending", 5); err != nil {
		t.Fatalf("push: %v", err)
	}
	q.Close()
	if _, ok := q.Pop(); ok {
		t.Fatal("expected Pop to return false for a closed queue")
	}
	if q.Len() != 1 {
		t.Fatalf("expected the pending item to remain, len=%d", q.Len())
	}
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(2)
	if q.Full() {
		t.Fatal("empty queue reported full")
	}
	q.Push("a", 1)
	q.Push("b", 1)
	if !q.Full() {
		t.Fatal("queue at capacity not reported full")
	}
	// Capacity is a soft bound: pushes past it still succeed so requeued
	// jobs are never lost.
	if err := q.Push("c", 1); err != nil {
		t.Fatalf("push past capacity: %v", err)
	}

	unbounded := NewQueue(0)
	for i := 0; i < 100; i++ {
		unbounded.Push("x", 1)
	}
	if unbounded.Full() {
		t.Fatal("unbounded queue reported full")
	}
}
