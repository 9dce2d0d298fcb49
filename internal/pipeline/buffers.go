package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/steppetalk/voice-terminal/internal/observability"
)

// Buffers hands out capture buffers. The release func returned with a
// buffer may be called any number of times; only the first call counts.
type Buffers interface {
	PCM(samples int) ([]int16, func(), error)
}

// BudgetBuffers allocates buffers against a fixed byte budget
type BudgetBuffers struct {
	limit int64
	inUse atomic.Int64
}

// NewBudgetBuffers creates an allocator that never holds more than limit bytes
func NewBudgetBuffers(limit int64) *BudgetBuffers {
	return &BudgetBuffers{limit: limit}
}

// PCM implements Buffers
func (b *BudgetBuffers) PCM(samples int) ([]int16, func(), error) {
	if samples <= 0 {
		return nil, nil, fmt.Errorf("%w: %d samples requested", ErrNoBuffer, samples)
	}
	size := int64(samples) * 2

	for {
		cur := b.inUse.Load()
		if cur+size > b.limit {
			return nil, nil, fmt.Errorf("%w: %d bytes requested, %d of %d in use", ErrNoBuffer, size, cur, b.limit)
		}
		if b.inUse.CompareAndSwap(cur, cur+size) {
			break
		}
	}
	observability.SetAudioBuffersInUse(b.inUse.Load())

	buf := make([]int16, samples)
	var once sync.Once
	release := func() {
		once.Do(func() {
			observability.SetAudioBuffersInUse(b.inUse.Add(-size))
		})
	}
	return buf, release, nil
}

// InUse returns the bytes currently handed out
func (b *BudgetBuffers) InUse() int64 {
	return b.inUse.Load()
}
