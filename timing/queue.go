package timing

import (
	"container/heap"
	"sync"
)

// EventQueue orders events by step. Events of the same step come out in the
// order they were pushed.
type EventQueue interface {
	Push(evt Event)
	Pop() Event
	Peek() Event
	Len() int
}

type queuedEvent struct {
	Event
	seq uint64
}

type eventHeap []queuedEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Time() != h[j].Time() {
		return h[i].Time() < h[j].Time()
	}

	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(queuedEvent))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	evt := old[n-1]
	*h = old[:n-1]

	return evt
}

type heapEventQueue struct {
	sync.Mutex
	events  eventHeap
	nextSeq uint64
}

// NewEventQueue creates an empty EventQueue.
func NewEventQueue() EventQueue {
	q := &heapEventQueue{}
	heap.Init(&q.events)

	return q
}

func (q *heapEventQueue) Push(evt Event) {
	q.Lock()
	heap.Push(&q.events, queuedEvent{Event: evt, seq: q.nextSeq})
	q.nextSeq++
	q.Unlock()
}

// Pop returns nil if the queue is empty.
func (q *heapEventQueue) Pop() Event {
	q.Lock()
	defer q.Unlock()

	if q.events.Len() == 0 {
		return nil
	}

	return heap.Pop(&q.events).(queuedEvent).Event
}

func (q *heapEventQueue) Peek() Event {
	q.Lock()
	defer q.Unlock()

	if q.events.Len() == 0 {
		return nil
	}

	return q.events[0].Event
}

func (q *heapEventQueue) Len() int {
	q.Lock()
	defer q.Unlock()

	return q.events.Len()
}
