package workflow

import (
	"time"

	"github.com/sirupsen/logrus"

	"scriptparser-go/internal/types"
)

// recorder accumulates per-stage durations and the total-budget
// arithmetic for one run. Not safe for concurrent use; each run gets
// its own.
type recorder struct {
	total   time.Duration
	started time.Time
	stages  []types.StageTiming
}

func newRecorder(total time.Duration) *recorder {
	return &recorder{
		total:   total,
		started: time.Now(),
		stages:  make([]types.StageTiming, 0, 4),
	}
}

func (r *recorder) elapsed() time.Duration { return time.Since(r.started) }

// remaining is the unspent share of the total budget. Zero or negative
// means no further stage may start.
func (r *recorder) remaining() time.Duration { return r.total - r.elapsed() }

// observe records one finished stage, warning instead of the usual
// completion line when the stage burned most of its own budget.
func (r *recorder) observe(log *logrus.Entry, stage string, d, budget time.Duration) {
	r.stages = append(r.stages, types.StageTiming{Stage: stage, DurationMs: d.Milliseconds()})

	entry := log.WithField("duration_ms", d.Milliseconds())
	if budget > 0 && d > budget*4/5 {
		entry.Warn("stage ran close to its budget")
		return
	}
	entry.Info("stage complete")
}

func (r *recorder) list() []types.StageTiming { return r.stages }
