package pipeline

import (
	"fmt"

	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
)

// memoryBudget tracks the image buffers held while one job is in flight. It
// is per-call state, not shared, so no locking is needed.
type memoryBudget struct {
	limit int64
	used  int64
}

func newMemoryBudget(limit int64) *memoryBudget {
	return &memoryBudget{limit: limit}
}

func (b *memoryBudget) reserve(n int64) error {
	if b.used+n > b.limit {
		return common.NewAppError("MEMORY_LIMIT_EXCEEDED",
			fmt.Sprintf("job needs %d bytes over the %d byte budget", b.used+n-b.limit, b.limit),
			common.ErrMemoryLimit)
	}
	b.used += n
	return nil
}

func (b *memoryBudget) release(n int64) {
	b.used -= n
	if b.used < 0 {
		b.used = 0
	}
}
