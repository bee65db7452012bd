package dashboard

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/tinytelemetry/alertscope/internal/alertsource"
)

// Refresher periodically reloads a Dashboard.
type Refresher struct {
	dash     *Dashboard
	interval time.Duration
	timeout  time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// RefresherConfig holds configuration for the refresher.
type RefresherConfig struct {
	Interval time.Duration
	// Timeout bounds each reload. Defaults to the interval.
	Timeout time.Duration
}

// NewRefresher starts reloading d every interval.
// Returns nil when the interval is 0 (disabled).
func NewRefresher(d *Dashboard, conf RefresherConfig) *Refresher {
	if conf.Interval <= 0 {
		return nil
	}
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = conf.Interval
	}

	r := &Refresher{
		dash:     d,
		interval: conf.Interval,
		timeout:  timeout,
		done:     make(chan struct{}),
	}

	r.wg.Add(1)
	go r.tickLoop()
	return r
}

func (r *Refresher) tickLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !r.reload() {
				return
			}
		case <-r.done:
			return
		}
	}
}

// reload runs one Load and reports whether refreshing should continue.
func (r *Refresher) reload() bool {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	// Cancel the in-flight fetch when stopping.
	go func() {
		select {
		case <-r.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	// Load already logs failures.
	_, err := r.dash.Load(ctx)
	if errors.Is(err, alertsource.ErrExhausted) {
		log.Printf("dashboard: source %s cannot be re-read, stopping refresh", r.dash.source.Name())
		return false
	}
	return true
}

// Stop signals the refresher to stop and waits for it to finish.
// Safe to call more than once, and on a nil Refresher.
func (r *Refresher) Stop() {
	if r == nil {
		return
	}
	r.stopOnce.Do(func() { close(r.done) })
	r.wg.Wait()
}
