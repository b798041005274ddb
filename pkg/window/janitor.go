package window

import (
	"time"

	"gatekeep/pkg/clock"
	"gatekeep/pkg/logger"
)

// Janitor periodically sweeps a Store so identities that stop sending
// requests do not accumulate forever.
type Janitor struct {
	store    Store
	clock    clock.Clock
	interval time.Duration
	logger   logger.Logger

	stop chan struct{}
	done chan struct{}
}

// NewJanitor creates a Janitor sweeping store every interval. It does not
// start sweeping until Start is called. A nil log falls back to the global
// logger; a nil clk falls back to the system clock.
func NewJanitor(store Store, interval time.Duration, clk clock.Clock, log logger.Logger) *Janitor {
	if clk == nil {
		clk = clock.System()
	}
	if log == nil {
		log = logger.GetLogger()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{
		store:    store,
		clock:    clk,
		interval: interval,
		logger:   log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (j *Janitor) Start() {
	j.logger.DebugWithFields("Starting eviction janitor", map[string]interface{}{
		"interval": j.interval.String(),
	})
	go j.run()
}

// Stop halts the sweep loop and waits for it to exit. It is safe to call
// once.
func (j *Janitor) Stop() {
	close(j.stop)
	<-j.done
}

func (j *Janitor) run() {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-ticker.C:
			removed := j.store.Sweep(j.clock.Now())
			if removed > 0 {
				j.logger.DebugWithFields("Evicted stale identities", map[string]interface{}{
					"removed":   removed,
					"remaining": j.store.Len(),
				})
			}
		}
	}
}
