package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/flushsched/driver"
	"github.com/sarchlab/flushsched/timing"
)

// A ProgressBar tracks how many of the steps of a run have been produced.
type ProgressBar struct {
	sync.Mutex
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
}

// IncrementFinished adds a certain amount to the finished steps.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// Func counts every published frame as a finished step.
func (b *ProgressBar) Func(ctx timing.HookCtx) {
	if ctx.Pos != driver.HookPosFrame {
		return
	}

	b.IncrementFinished(1)
}

func (b *ProgressBar) snapshot() progressRsp {
	b.Lock()
	defer b.Unlock()

	return progressRsp{
		ID:        b.ID,
		Name:      b.Name,
		StartTime: b.StartTime,
		Total:     b.Total,
		Finished:  b.Finished,
	}
}

type progressRsp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
}
