package spatial

import (
	"fmt"
	"math"
)

// Grid is a uniform-cell hash index over 2D rows. Queries scan the cell
// neighborhood of the query point, expanding outwards ring by ring until
// the answer cannot improve. For localization densities seen in practice a
// cell size near the mean point spacing keeps scans at a handful of cells.
type Grid struct {
	cell  float64
	rows  [][]float64
	cells map[cellKey][]int32

	minX, minY int32
	maxX, maxY int32
}

var _ Index = (*Grid)(nil)

type cellKey struct {
	x, y int32
}

// NewGrid builds a grid index with the given cell size over 2D rows.
func NewGrid(rows [][]float64, cellSize float64) (*Grid, error) {
	dim, err := validateRows(rows)
	if err != nil {
		return nil, err
	}
	if dim != 2 {
		return nil, fmt.Errorf("grid index is 2D only, rows have %d coordinates", dim)
	}
	if cellSize <= 0 {
		return nil, fmt.Errorf("grid cell size must be positive, got %g", cellSize)
	}

	g := &Grid{
		cell:  cellSize,
		rows:  rows,
		cells: make(map[cellKey][]int32, len(rows)),
	}
	for i, r := range rows {
		k := g.keyFor(r[0], r[1])
		g.cells[k] = append(g.cells[k], int32(i))
		if i == 0 {
			g.minX, g.maxX = k.x, k.x
			g.minY, g.maxY = k.y, k.y
			continue
		}
		g.minX = min(g.minX, k.x)
		g.maxX = max(g.maxX, k.x)
		g.minY = min(g.minY, k.y)
		g.maxY = max(g.maxY, k.y)
	}
	return g, nil
}

// AutoCellSize returns a cell size targeting roughly one row per cell for
// n rows spread over the given area.
func AutoCellSize(area float64, n int) float64 {
	if n <= 0 || area <= 0 {
		return 1
	}
	return math.Sqrt(area / float64(n))
}

// Len returns the number of indexed rows.
func (g *Grid) Len() int { return len(g.rows) }

func (g *Grid) keyFor(x, y float64) cellKey {
	return cellKey{
		x: int32(math.Floor(x / g.cell)),
		y: int32(math.Floor(y / g.cell)),
	}
}

// KNearest returns up to k rows closest to q, nearest first.
func (g *Grid) KNearest(q []float64, k int) []Neighbor {
	g.checkDim(q)
	if k <= 0 {
		return nil
	}
	pq := newNeighborQueue(k)
	center := g.keyFor(q[0], q[1])
	maxRing := g.maxRingFrom(center)
	for ring := int32(0); ring <= maxRing; ring++ {
		// A cell at Chebyshev ring r holds no point closer than (r-1)
		// cell widths, so a full queue below that bound is final.
		if pq.full() && pq.worst() <= g.ringFloor(ring) {
			break
		}
		g.scanRing(center, ring, q, pq)
	}
	return pq.sorted()
}

func (g *Grid) ringFloor(ring int32) float64 {
	if ring <= 1 {
		return 0
	}
	return float64(ring-1) * g.cell
}

func (g *Grid) maxRingFrom(c cellKey) int32 {
	r := max(absDiff(c.x, g.minX), absDiff(c.x, g.maxX))
	return max(r, max(absDiff(c.y, g.minY), absDiff(c.y, g.maxY)))
}

func absDiff(a, b int32) int32 {
	if a > b {
		return a - b
	}
	return b - a
}

func (g *Grid) scanRing(c cellKey, ring int32, q []float64, pq *neighborQueue) {
	if ring == 0 {
		g.scanCell(c, q, pq)
		return
	}
	for dx := -ring; dx <= ring; dx++ {
		g.scanCell(cellKey{x: c.x + dx, y: c.y - ring}, q, pq)
		g.scanCell(cellKey{x: c.x + dx, y: c.y + ring}, q, pq)
	}
	for dy := -ring + 1; dy <= ring-1; dy++ {
		g.scanCell(cellKey{x: c.x - ring, y: c.y + dy}, q, pq)
		g.scanCell(cellKey{x: c.x + ring, y: c.y + dy}, q, pq)
	}
}

func (g *Grid) scanCell(k cellKey, q []float64, pq *neighborQueue) {
	for _, id := range g.cells[k] {
		pq.offer(Neighbor{Index: int(id), Distance: math.Sqrt(sqDist(q, g.rows[id]))})
	}
}

// WithinRadius returns every row within Euclidean distance r of q,
// nearest first.
func (g *Grid) WithinRadius(q []float64, r float64) []Neighbor {
	g.checkDim(q)
	if r <= 0 {
		return nil
	}
	lo := g.keyFor(q[0]-r, q[1]-r)
	hi := g.keyFor(q[0]+r, q[1]+r)
	loX, hiX := max(lo.x, g.minX), min(hi.x, g.maxX)
	loY, hiY := max(lo.y, g.minY), min(hi.y, g.maxY)

	var out []Neighbor
	for cx := loX; cx <= hiX; cx++ {
		for cy := loY; cy <= hiY; cy++ {
			for _, id := range g.cells[cellKey{x: cx, y: cy}] {
				if d := math.Sqrt(sqDist(q, g.rows[id])); d <= r {
					out = append(out, Neighbor{Index: int(id), Distance: d})
				}
			}
		}
	}
	return sortNeighbors(out)
}

func (g *Grid) checkDim(q []float64) {
	if len(q) != 2 {
		panic(fmt.Sprintf("spatial: query has %d coordinates, grid expects 2", len(q)))
	}
}
