package jobs

import (
	"container/heap"
	"sync"
)

// queueItem is one queued job reference. seq breaks weight ties so equal
// priorities dequeue in submission order.
type queueItem struct {
	jobID  string
	weight int
	seq    uint64
}

type queueHeap []queueItem

func (h queueHeap) Len() int { return len(h) }

func (h queueHeap) Less(i, j int) bool {
	if h[i].weight != h[j].weight {
		return h[i].weight > h[j].weight
	}
	return h[i].seq < h[j].seq
}

func (h queueHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *queueHeap) Push(x any) { *h = append(*h, x.(queueItem)) }

func (h *queueHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue is a weight-ordered job queue. Pop blocks until an item arrives or
// the queue is closed. Capacity is enforced by Full at submission time, so
// requeued jobs are never rejected.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    queueHeap
	capacity int
	closed   bool
	seq      uint64
}

// NewQueue returns a queue holding up to capacity pending jobs. A capacity
// of zero or less means unbounded.
func NewQueue(capacity int) *Queue {
	q := &Queue{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a job reference. It only fails once the queue is closed.
func (q *Queue) Push(jobID string, weight int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueFull
	}
	q.seq++
	heap.Push(&q.items, queueItem{jobID: jobID, weight: weight, seq: q.seq})
	q.notEmpty.Signal()
	return nil
}

// Pop blocks until a job is available and returns its ID. It returns false
// once the queue is closed. Items still pending at close are abandoned
// here; their rows stay queued and are requeued on the next Start.
func (q *Queue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.closed {
			return "", false
		}
		if len(q.items) > 0 {
			break
		}
		q.notEmpty.Wait()
	}
	item := heap.Pop(&q.items).(queueItem)
	return item.jobID, true
}

// Close stops the queue and releases blocked Pop calls.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notEmpty.Broadcast()
}

// Len reports the number of pending jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Full reports whether the queue is at capacity.
func (q *Queue) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity > 0 && len(q.items) >= q.capacity
}
