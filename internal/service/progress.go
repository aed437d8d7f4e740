package service

import (
	"sync"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/service/analyzer"
)

// Fixed points of the generation progress signal.
const (
	progressCreated   = 0.05
	progressScored    = 0.90
	progressPersisted = 0.99
	progressDone      = 1.0
)

// ProgressFunc receives a fraction in [0, 1].
type ProgressFunc func(progress float64)

// progressReporter forwards only non-decreasing values to sink.
type progressReporter struct {
	mu   sync.Mutex
	last float64
	sink ProgressFunc
}

func newProgressReporter(sink ProgressFunc) *progressReporter {
	return &progressReporter{sink: sink}
}

func (p *progressReporter) Report(value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	value = min(max(value, 0), progressDone)
	if value < p.last {
		return
	}
	p.last = value

	if p.sink != nil {
		p.sink(value)
	}
}

// Stage maps engine progress (current of total) onto [from, to].
func (p *progressReporter) Stage(from, to float64) analyzer.ProgressFunc {
	return func(current, total int) {
		if total <= 0 {
			p.Report(to)
			return
		}
		p.Report(from + (to-from)*float64(current)/float64(total))
	}
}
