package spatial

import (
	"fmt"
	"math"
)

// KDTree is a balanced k-d tree over a fixed row set. It works in any
// dimension; the pipeline uses it for 2D localizations and 4D quad codes.
type KDTree struct {
	dim   int
	rows  [][]float64
	nodes []kdNode
	root  int32
}

var _ Index = (*KDTree)(nil)

type kdNode struct {
	row   int32
	left  int32
	right int32
	axis  int8
}

// NewKDTree builds a tree over the given rows. The rows are borrowed, not
// copied, and must not be mutated for the lifetime of the tree. All rows
// must share one dimension and there must be at least two of them.
func NewKDTree(rows [][]float64) (*KDTree, error) {
	dim, err := validateRows(rows)
	if err != nil {
		return nil, err
	}
	t := &KDTree{dim: dim, rows: rows, nodes: make([]kdNode, 0, len(rows))}
	ids := make([]int32, len(rows))
	for i := range ids {
		ids[i] = int32(i)
	}
	t.root = t.build(ids, 0)
	return t, nil
}

// Len returns the number of indexed rows.
func (t *KDTree) Len() int { return len(t.rows) }

// Dim returns the row dimension.
func (t *KDTree) Dim() int { return t.dim }

func (t *KDTree) build(ids []int32, depth int) int32 {
	if len(ids) == 0 {
		return -1
	}
	axis := depth % t.dim
	mid := len(ids) / 2
	t.selectMedian(ids, mid, axis)

	node := int32(len(t.nodes))
	t.nodes = append(t.nodes, kdNode{row: ids[mid], axis: int8(axis)})
	left := t.build(ids[:mid], depth+1)
	right := t.build(ids[mid+1:], depth+1)
	t.nodes[node].left = left
	t.nodes[node].right = right
	return node
}

// selectMedian partially orders ids so ids[mid] holds the row that a full
// sort by the axis coordinate would place there (quickselect).
func (t *KDTree) selectMedian(ids []int32, mid, axis int) {
	lo, hi := 0, len(ids)-1
	for lo < hi {
		p := t.partition(ids, lo, hi, axis)
		switch {
		case p == mid:
			return
		case p < mid:
			lo = p + 1
		default:
			hi = p - 1
		}
	}
}

func (t *KDTree) partition(ids []int32, lo, hi, axis int) int {
	// Median-of-three pivot to keep the split balanced on ordered input.
	m := (lo + hi) / 2
	if t.rows[ids[m]][axis] < t.rows[ids[lo]][axis] {
		ids[m], ids[lo] = ids[lo], ids[m]
	}
	if t.rows[ids[hi]][axis] < t.rows[ids[lo]][axis] {
		ids[hi], ids[lo] = ids[lo], ids[hi]
	}
	if t.rows[ids[hi]][axis] < t.rows[ids[m]][axis] {
		ids[hi], ids[m] = ids[m], ids[hi]
	}
	ids[m], ids[hi] = ids[hi], ids[m]
	pivot := t.rows[ids[hi]][axis]

	i := lo
	for j := lo; j < hi; j++ {
		if t.rows[ids[j]][axis] < pivot {
			ids[i], ids[j] = ids[j], ids[i]
			i++
		}
	}
	ids[i], ids[hi] = ids[hi], ids[i]
	return i
}

// KNearest returns up to k rows closest to q, nearest first.
func (t *KDTree) KNearest(q []float64, k int) []Neighbor {
	t.checkDim(q)
	if k <= 0 {
		return nil
	}
	pq := newNeighborQueue(k)
	t.searchK(t.root, q, pq)
	return pq.sorted()
}

func (t *KDTree) searchK(node int32, q []float64, pq *neighborQueue) {
	if node < 0 {
		return
	}
	n := t.nodes[node]
	row := t.rows[n.row]
	pq.offer(Neighbor{Index: int(n.row), Distance: math.Sqrt(sqDist(q, row))})

	diff := q[n.axis] - row[n.axis]
	near, far := n.left, n.right
	if diff > 0 {
		near, far = n.right, n.left
	}
	t.searchK(near, q, pq)
	// The far subtree only holds rows at distance >= |diff| from q, so it
	// can be skipped once the queue is full of strictly better candidates.
	if !pq.full() || math.Abs(diff) < pq.worst() {
		t.searchK(far, q, pq)
	}
}

// WithinRadius returns every row within Euclidean distance r of q,
// nearest first. Non-positive radii yield no results.
func (t *KDTree) WithinRadius(q []float64, r float64) []Neighbor {
	t.checkDim(q)
	if r <= 0 {
		return nil
	}
	var out []Neighbor
	t.searchR(t.root, q, r, &out)
	return sortNeighbors(out)
}

func (t *KDTree) searchR(node int32, q []float64, r float64, out *[]Neighbor) {
	if node < 0 {
		return
	}
	n := t.nodes[node]
	row := t.rows[n.row]
	if d := math.Sqrt(sqDist(q, row)); d <= r {
		*out = append(*out, Neighbor{Index: int(n.row), Distance: d})
	}

	diff := q[n.axis] - row[n.axis]
	near, far := n.left, n.right
	if diff > 0 {
		near, far = n.right, n.left
	}
	t.searchR(near, q, r, out)
	if math.Abs(diff) <= r {
		t.searchR(far, q, r, out)
	}
}

func (t *KDTree) checkDim(q []float64) {
	if len(q) != t.dim {
		panic(fmt.Sprintf("spatial: query has %d coordinates, index expects %d", len(q), t.dim))
	}
}
