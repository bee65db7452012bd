package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/alertscope/internal/alertsource"
	"github.com/tinytelemetry/alertscope/internal/model"
)

// scriptedSource returns its batches in order, then repeats the last one.
type scriptedSource struct {
	mu      sync.Mutex
	batches [][]model.AlertRecord
	errs    []error
	calls   atomic.Int32
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Fetch(ctx context.Context) ([]model.AlertRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := int(s.calls.Add(1)) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.batches) {
		i = len(s.batches) - 1
	}
	return s.batches[i], nil
}

type recordingSink struct {
	mu   sync.Mutex
	got  [][]model.AlertRecord
	fail error
}

func (r *recordingSink) ReplaceAlerts(records []model.AlertRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, records)
	return r.fail
}

// blockingSource succeeds once, then blocks every later Fetch until its
// context ends.
type blockingSource struct {
	calls   atomic.Int32
	blocked chan struct{}
}

func (s *blockingSource) Name() string { return "blocking" }

func (s *blockingSource) Fetch(ctx context.Context) ([]model.AlertRecord, error) {
	if s.calls.Add(1) == 1 {
		return []model.AlertRecord{alert("2023-01-01T10:00:00Z", "1.1.1.1", "scan")}, nil
	}
	select {
	case s.blocked <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func alert(ts, ip, category string) model.AlertRecord {
	return model.AlertRecord{Timestamp: model.Str(ts), SourceIP: model.Str(ip), AlertCategory: model.Str(category)}
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func TestDashboard_EmptyBeforeLoad(t *testing.T) {
	t.Parallel()

	d := NewDashboard(&scriptedSource{batches: [][]model.AlertRecord{nil}})
	snap := d.Current()
	require.NotNil(t, snap)
	assert.False(t, snap.Loaded())
	assert.Equal(t, "scripted", snap.Source)
	assert.NotNil(t, snap.Charts.Bar)
	assert.Empty(t, snap.Charts.Bar)
}

func TestDashboard_Load(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{batches: [][]model.AlertRecord{{
		alert("2023-01-01T10:00:00Z", "1.1.1.1", "scan"),
		alert("2023-01-01T11:00:00Z", "1.1.1.1", "dos"),
		alert("2023-01-02T09:00:00Z", "2.2.2.2", "scan"),
	}}}
	d := NewDashboard(src, Config{Now: fixedClock})

	snap, err := d.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, d.Current())
	assert.True(t, snap.Loaded())
	assert.Equal(t, fixedNow, snap.LoadedAt)
	assert.Empty(t, snap.LastError)
	assert.Equal(t, []model.XY{{X: "1.1.1.1", Y: 2}, {X: "2.2.2.2", Y: 1}}, snap.Charts.Bar)
	assert.Equal(t, []model.LabelValue{{Labels: "scan", Values: 2}, {Labels: "dos", Values: 1}}, snap.Charts.Pie)
	assert.Equal(t, []model.XY{{X: "2023-01-01", Y: 2}, {X: "2023-01-02", Y: 1}}, snap.Charts.TimeSeries)
}

func TestDashboard_FailedLoadKeepsPreviousSnapshot(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	src := &scriptedSource{
		batches: [][]model.AlertRecord{{alert("2023-01-01T10:00:00Z", "1.1.1.1", "scan")}},
		errs:    []error{nil, boom},
	}
	sink := &recordingSink{}
	d := NewDashboard(src, Config{Sink: sink, Now: fixedClock})

	first, err := d.Load(context.Background())
	require.NoError(t, err)

	stale, err := d.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	cur := d.Current()
	assert.Same(t, stale, cur)
	assert.Equal(t, "connection refused", cur.LastError)
	assert.Equal(t, first.Charts, cur.Charts)
	assert.Equal(t, first.LoadedAt, cur.LoadedAt)
	// The sink only sees successful loads.
	assert.Len(t, sink.got, 1)

	// Recovery clears the error.
	recovered, err := d.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recovered.LastError)
}

func TestDashboard_CancelledLoadKeepsSnapshotClean(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{
		batches: [][]model.AlertRecord{{alert("2023-01-01T10:00:00Z", "1.1.1.1", "scan")}},
		errs:    []error{nil, context.Canceled},
	}
	d := NewDashboard(src, Config{Now: fixedClock})

	first, err := d.Load(context.Background())
	require.NoError(t, err)

	got, err := d.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Same(t, first, got)
	assert.Same(t, first, d.Current())
	assert.Empty(t, d.Current().LastError)
}

func TestDashboard_FailedFirstLoad(t *testing.T) {
	t.Parallel()

	d := NewDashboard(&scriptedSource{errs: []error{alertsource.ErrMalformedDocument}})
	_, err := d.Load(context.Background())
	assert.ErrorIs(t, err, alertsource.ErrMalformedDocument)

	cur := d.Current()
	assert.False(t, cur.Loaded())
	assert.NotEmpty(t, cur.LastError)
	assert.Empty(t, cur.Charts.Bar)
}

func TestDashboard_ReloadReplacesWholesale(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{batches: [][]model.AlertRecord{
		{alert("2023-01-01T10:00:00Z", "1.1.1.1", "scan")},
		{alert("2023-02-01T10:00:00Z", "9.9.9.9", "malware")},
	}}
	d := NewDashboard(src)

	_, err := d.Load(context.Background())
	require.NoError(t, err)
	snap, err := d.Reload(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"9.9.9.9"}, snap.Result.BySourceIP.Keys())
	assert.Equal(t, []string{"malware"}, snap.Result.ByCategory.Keys())
	assert.Equal(t, []string{"2023-02-01"}, snap.Result.ByDate.Keys())
}

func TestDashboard_SinkFailureStillPublishes(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{fail: errors.New("disk full")}
	src := &scriptedSource{batches: [][]model.AlertRecord{{alert("2023-01-01T10:00:00Z", "1.1.1.1", "scan")}}}
	d := NewDashboard(src, Config{Sink: sink})

	snap, err := d.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Result.Records)
	require.Len(t, sink.got, 1)
	assert.Len(t, sink.got[0], 1)
}

func TestDashboard_ConcurrentLoads(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{batches: [][]model.AlertRecord{{
		alert("2023-01-01T10:00:00Z", "1.1.1.1", "scan"),
		alert("2023-01-01T11:00:00Z", "2.2.2.2", "scan"),
	}}}
	d := NewDashboard(src)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = d.Load(context.Background())
		}()
		go func() {
			defer wg.Done()
			snap, err := d.Snapshot()
			assert.NoError(t, err)
			// A reader sees either the empty or the full snapshot, never a partial one.
			total := snap.Result.BySourceIP.Total()
			assert.Contains(t, []int{0, 2}, total)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(8), src.calls.Load())
	assert.Equal(t, 2, d.Current().Result.ByCategory.Total())
}

func TestRefresher_DisabledWhenIntervalZero(t *testing.T) {
	t.Parallel()

	d := NewDashboard(&scriptedSource{batches: [][]model.AlertRecord{nil}})
	r := NewRefresher(d, RefresherConfig{})
	assert.Nil(t, r)
	r.Stop()
}

func TestRefresher_ReloadsPeriodically(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{batches: [][]model.AlertRecord{{alert("2023-01-01T10:00:00Z", "1.1.1.1", "scan")}}}
	d := NewDashboard(src)
	r := NewRefresher(d, RefresherConfig{Interval: 5 * time.Millisecond})
	require.NotNil(t, r)

	assert.Eventually(t, func() bool { return src.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	r.Stop()
	r.Stop()

	calls := src.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, src.calls.Load(), "no reloads after Stop")
	assert.True(t, d.Current().Loaded())
}

func TestRefresher_StopsOnExhaustedSource(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{errs: []error{alertsource.ErrExhausted, alertsource.ErrExhausted, alertsource.ErrExhausted}}
	d := NewDashboard(src)
	r := NewRefresher(d, RefresherConfig{Interval: 5 * time.Millisecond})
	require.NotNil(t, r)

	assert.Eventually(t, func() bool { return src.calls.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	r.Stop()
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestRefresher_StopDuringLoadLeavesNoError(t *testing.T) {
	t.Parallel()

	src := &blockingSource{blocked: make(chan struct{}, 1)}
	d := NewDashboard(src)
	first, err := d.Load(context.Background())
	require.NoError(t, err)

	r := NewRefresher(d, RefresherConfig{Interval: 5 * time.Millisecond, Timeout: time.Minute})
	require.NotNil(t, r)

	select {
	case <-src.blocked:
	case <-time.After(2 * time.Second):
		t.Fatal("refresher never started a reload")
	}
	r.Stop()

	assert.Same(t, first, d.Current())
	assert.Empty(t, d.Current().LastError)
}
