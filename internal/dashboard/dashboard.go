// Package dashboard owns the published alert snapshot: it pulls records from
// a source, aggregates them and swaps the result in atomically.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/alertscope/internal/aggregate"
	"github.com/tinytelemetry/alertscope/internal/alertsource"
	"github.com/tinytelemetry/alertscope/internal/model"
)

// Config holds optional collaborators for a Dashboard.
type Config struct {
	// Sink receives the raw records after every successful load.
	Sink model.AlertWriter
	// Now overrides the clock used for LoadedAt.
	Now func() time.Time
}

// Dashboard loads alerts from one source and publishes immutable snapshots.
// Readers never block on a load in progress.
type Dashboard struct {
	source  alertsource.Source
	sink    model.AlertWriter
	now     func() time.Time
	current atomic.Pointer[model.Snapshot]
	loadMu  sync.Mutex
}

// NewDashboard creates a dashboard with an empty snapshot.
func NewDashboard(source alertsource.Source, conf ...Config) *Dashboard {
	d := &Dashboard{
		source: source,
		now:    time.Now,
	}
	if len(conf) > 0 {
		d.sink = conf[0].Sink
		if conf[0].Now != nil {
			d.now = conf[0].Now
		}
	}
	d.current.Store(emptySnapshot(source.Name()))
	return d
}

func emptySnapshot(source string) *model.Snapshot {
	return &model.Snapshot{
		Result: model.Result{},
		Charts: aggregate.Charts(model.Result{}),
		Source: source,
	}
}

// Current returns the latest published snapshot. Never nil.
func (d *Dashboard) Current() *model.Snapshot {
	return d.current.Load()
}

// Snapshot implements model.SnapshotProvider.
func (d *Dashboard) Snapshot() (*model.Snapshot, error) {
	return d.Current(), nil
}

// Reload implements model.SnapshotProvider.
func (d *Dashboard) Reload(ctx context.Context) (*model.Snapshot, error) {
	return d.Load(ctx)
}

// Load fetches, aggregates and publishes a new snapshot. Concurrent calls are
// serialized. On fetch failure the previous snapshot stays published with
// LastError set, and the error is returned. A cancelled load leaves the
// published snapshot untouched.
func (d *Dashboard) Load(ctx context.Context) (*model.Snapshot, error) {
	d.loadMu.Lock()
	defer d.loadMu.Unlock()

	start := time.Now()
	records, err := d.source.Fetch(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			log.Printf("dashboard: load from %s cancelled", d.source.Name())
			return d.current.Load(), fmt.Errorf("dashboard: load: %w", err)
		}
		log.Printf("dashboard: load from %s failed: %v", d.source.Name(), err)
		prev := d.current.Load()
		stale := *prev
		stale.LastError = err.Error()
		d.current.Store(&stale)
		return &stale, fmt.Errorf("dashboard: load: %w", err)
	}

	res := aggregate.Aggregate(records)
	snap := &model.Snapshot{
		Result:   res,
		Charts:   aggregate.Charts(res),
		Source:   d.source.Name(),
		LoadedAt: d.now(),
	}

	if d.sink != nil {
		if err := d.sink.ReplaceAlerts(records); err != nil {
			log.Printf("dashboard: sink update failed: %v", err)
		}
	}

	d.current.Store(snap)
	log.Printf("dashboard: loaded %d alerts from %s in %s (%d source IPs, %d categories, %d dates)",
		res.Records, snap.Source, time.Since(start).Round(time.Millisecond),
		res.BySourceIP.Len(), res.ByCategory.Len(), res.ByDate.Len())
	return snap, nil
}
