package telemetry

import (
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/pagecast/pagecast/internal/logger"
	"github.com/pagecast/pagecast/internal/stats"
)

// UsageMonitor samples this process's CPU usage on a fixed timer,
// smooths it through a stats tracker, and emits the tracker's samples
// as usage events (surface id empty; the metric is process-global).
type UsageMonitor struct {
	proc     *process.Process
	tracker  *stats.Tracker
	emitter  Emitter
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewUsageMonitor creates a monitor sampling every interval. The
// tracker window and emit cadence bound how often usage events reach
// the console.
func NewUsageMonitor(emitter Emitter, interval time.Duration, window, emitEvery int) (*UsageMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to open process handle: %w", err)
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if window <= 0 {
		window = 30
	}
	if emitEvery <= 0 {
		emitEvery = 1
	}

	return &UsageMonitor{
		proc:     proc,
		tracker:  stats.NewTracker(window, emitEvery),
		emitter:  emitter,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start begins sampling.
func (m *UsageMonitor) Start() {
	// Prime the delta so the first real sample has a baseline.
	m.proc.Percent(0)

	go m.loop()
	logger.WithComponent("usage").Debug().
		Dur("interval", m.interval).
		Msg("CPU usage monitor started")
}

// Stop halts sampling and waits for the loop to exit.
func (m *UsageMonitor) Stop() {
	close(m.stop)
	<-m.done
}

func (m *UsageMonitor) loop() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			pct, err := m.proc.Percent(0)
			if err != nil {
				logger.WithComponent("usage").Debug().
					Err(err).
					Msg("CPU sample failed")
				continue
			}
			if sample, ok := m.tracker.Record(pct); ok {
				m.emitter.Emit(Event{Type: EventUsage, Payload: sample})
			}
		}
	}
}
