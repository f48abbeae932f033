package mempool

import (
	"sync"

	"github.com/fidlab/quadmatch/internal/geometry"
)

// Sized pools for the buffers churned through hypothesis verification:
// transformed point slices and least-squares scratch.

var (
	pointPools   sync.Map // key: size class (int), value: *sync.Pool
	float64Pools sync.Map // key: size class (int), value: *sync.Pool
)

// sizeClass rounds n up to the next bucket to reduce churn. Point sets
// are hundreds of beads, not megapixels, so buckets are 256 wide.
func sizeClass(n int) int {
	if n <= 256 {
		return 256
	}
	const step = 256
	r := (n + step - 1) / step
	return r * step
}

// GetPoints retrieves a []geometry.Point buffer of at least n elements from
// the pool. The returned slice has length n but may have larger capacity.
// The caller must return it via PutPoints when done.
func GetPoints(n int) []geometry.Point {
	cls := sizeClass(n)
	pAny, _ := pointPools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]geometry.Point, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		// Fallback
		buf := make([]geometry.Point, cls)
		return buf[:n]
	}
	bufAny := p.Get()
	buf, ok := bufAny.([]geometry.Point)
	if !ok {
		buf = make([]geometry.Point, cls)
	}
	if cap(buf) < cls {
		buf = make([]geometry.Point, cls)
	} else {
		buf = buf[:cap(buf)]
	}
	return buf[:n]
}

// PutPoints returns a buffer to the pool. It is safe to pass a nil slice.
func PutPoints(buf []geometry.Point) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	pAny, _ := pointPools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]geometry.Point, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return // skip
	}
	// Reset length to full cap; contents need not be zeroed.
	p.Put(buf[:cap(buf)]) //nolint:staticcheck
}

// GetFloat64 retrieves a []float64 buffer of at least n elements from the
// pool. The returned slice has length n but may have larger capacity.
// The caller must return it via PutFloat64 when done.
func GetFloat64(n int) []float64 {
	cls := sizeClass(n)
	pAny, _ := float64Pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]float64, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		// Fallback
		buf := make([]float64, cls)
		return buf[:n]
	}
	bufAny := p.Get()
	buf, ok := bufAny.([]float64)
	if !ok {
		buf = make([]float64, cls)
	}
	if cap(buf) < cls {
		buf = make([]float64, cls)
	} else {
		buf = buf[:cap(buf)]
	}
	return buf[:n]
}

// PutFloat64 returns a buffer to the pool. It is safe to pass a nil slice.
func PutFloat64(buf []float64) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	pAny, _ := float64Pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]float64, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return // skip
	}
	p.Put(buf[:cap(buf)]) //nolint:staticcheck
}
