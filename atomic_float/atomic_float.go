package atomic_float

import (
	"math"
	"sync/atomic"
)

// AtomicFloat64 is a float64 for lock-free reads and writes, stored as its IEEE-754 bits.
// Training goroutines publish episode rewards through it while request handlers read them.
// The zero value holds 0.0 and is ready to use.
type AtomicFloat64 struct {
	bits atomic.Uint64
}

// NewAtomicFloat64 encapsulates a float64 for atomic operations.
func NewAtomicFloat64(val float64) *AtomicFloat64 {
	af := &AtomicFloat64{}
	af.bits.Store(math.Float64bits(val))
	return af
}

// AtomicRead returns the current value.
func (af *AtomicFloat64) AtomicRead() float64 {
	return math.Float64frombits(af.bits.Load())
}

// AtomicSet unconditionally stores val.
func (af *AtomicFloat64) AtomicSet(val float64) {
	af.bits.Store(math.Float64bits(val))
}

// AtomicAdd makes a single attempt to add the addend. If the value changed between the read
// and the swap, nothing is written and succeeded is false; the caller decides whether to retry
// or drop the update.
func (af *AtomicFloat64) AtomicAdd(addend float64) (newVal float64, succeeded bool) {
	old := af.bits.Load()
	newVal = math.Float64frombits(old) + addend
	succeeded = af.bits.CompareAndSwap(old, math.Float64bits(newVal))
	return
}

// AtomicMax raises the value to val if val is larger, retrying until it either wins or observes
// a value at least as large. Returns the resulting value.
func (af *AtomicFloat64) AtomicMax(val float64) float64 {
	for {
		old := af.bits.Load()
		cur := math.Float64frombits(old)
		if cur >= val {
			return cur
		}
		if af.bits.CompareAndSwap(old, math.Float64bits(val)) {
			return val
		}
	}
}
