package spatial

import (
	"container/heap"
	"sort"
)

// neighborQueue is a bounded max-heap of the k best candidates seen so far.
// The worst candidate sits at the top so it can be evicted cheaply when a
// better one arrives.
type neighborQueue struct {
	items []Neighbor
	limit int
}

func newNeighborQueue(limit int) *neighborQueue {
	return &neighborQueue{items: make([]Neighbor, 0, limit), limit: limit}
}

func (q *neighborQueue) Len() int { return len(q.items) }

func (q *neighborQueue) Less(i, j int) bool {
	return q.items[i].Distance > q.items[j].Distance
}

func (q *neighborQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *neighborQueue) Push(x any) {
	q.items = append(q.items, x.(Neighbor))
}

func (q *neighborQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}

// offer inserts the candidate if the queue is not yet full or the candidate
// beats the current worst entry.
func (q *neighborQueue) offer(n Neighbor) {
	if len(q.items) < q.limit {
		heap.Push(q, n)
		return
	}
	if n.Distance < q.items[0].Distance {
		q.items[0] = n
		heap.Fix(q, 0)
	}
}

// full reports whether the queue holds its limit of candidates.
func (q *neighborQueue) full() bool { return len(q.items) >= q.limit }

// worst returns the largest distance currently kept. Only valid when the
// queue is non-empty.
func (q *neighborQueue) worst() float64 { return q.items[0].Distance }

// sorted drains the queue into a nearest-first slice.
func (q *neighborQueue) sorted() []Neighbor {
	out := q.items
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Index < out[j].Index
	})
	q.items = nil
	return out
}

func sortNeighbors(ns []Neighbor) []Neighbor {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].Distance != ns[j].Distance {
			return ns[i].Distance < ns[j].Distance
		}
		return ns[i].Index < ns[j].Index
	})
	return ns
}
