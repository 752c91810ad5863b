// Package atomicfloat encapsulates a float64 for lock-free reads and
// compare-and-swap updates. The DP evaluator uses it to store each state's
// V_lambda so that a stage's Bellman sweep can run across a worker pool
// while the prior (already-finalised) stage is read concurrently without a
// per-entry mutex.
package atomicfloat

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// Float64 holds a float64 for atomic operations.
type Float64 struct {
	val float64
}

// New returns a Float64 initialised to val.
func New(val float64) *Float64 {
	return &Float64{val: val}
}

// Load atomically reads the float64.
func (f *Float64) Load() float64 {
	bits := atomic.LoadUint64((*uint64)(unsafe.Pointer(&f.val)))
	return math.Float64frombits(bits)
}

// Store atomically sets the float64.
func (f *Float64) Store(val float64) {
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&f.val)), math.Float64bits(val))
}

// CompareAndSwap atomically sets val if the current value equals old,
// returning whether the swap succeeded. The DP evaluator itself only ever
// calls Store, since each entry is written by exactly one owning goroutine
// per stage.
func (f *Float64) CompareAndSwap(old, val float64) bool {
	return atomic.CompareAndSwapUint64(
		(*uint64)(unsafe.Pointer(&f.val)),
		math.Float64bits(old),
		math.Float64bits(val),
	)
}
