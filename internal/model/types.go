package model

import "time"

// AlertRecord is one decoded security alert.
// Nil fields were absent (or not scalar) in the source document.
// The aggregator only reads Timestamp, SourceIP and AlertCategory.
type AlertRecord struct {
	Timestamp     *string `json:"timestamp,omitempty"`
	SourceIP      *string `json:"sourceIp,omitempty"`
	AlertCategory *string `json:"alertCategory,omitempty"`
	DestIP        *string `json:"destIp,omitempty"`
	Signature     *string `json:"signature,omitempty"`
	Severity      *int    `json:"severity,omitempty"`
	EventType     *string `json:"eventType,omitempty"`
}

// Str returns a pointer to s. Handy for building records by hand.
func Str(s string) *string { return &s }

// Int returns a pointer to n.
func Int(n int) *int { return &n }

// ChartPoint is one (key, count) pair of a FrequencyMap.
type ChartPoint struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// SkipCounts reports how many records did not contribute to each map.
type SkipCounts struct {
	SourceIP           int `json:"sourceIp"`
	Category           int `json:"category"`
	Date               int `json:"date"`
	MalformedTimestamp int `json:"malformedTimestamp"` // present but no date/time separator
}

// Result holds the three frequency projections of one aggregation pass.
type Result struct {
	BySourceIP FrequencyMap `json:"bySourceIp"`
	ByCategory FrequencyMap `json:"byCategory"`
	ByDate     FrequencyMap `json:"byDate"`
	Records    int          `json:"records"`
	Skipped    SkipCounts   `json:"skipped"`
}

// XY is a point of a bar or line chart.
type XY struct {
	X string `json:"x"`
	Y int    `json:"y"`
}

// LabelValue is a slice of a pie chart.
type LabelValue struct {
	Labels string `json:"labels"`
	Values int    `json:"values"`
}

// ChartSet is what chart renderers consume.
type ChartSet struct {
	Bar        []XY         `json:"bar"`
	Pie        []LabelValue `json:"pie"`
	TimeSeries []XY         `json:"timeseries"`
}

// Snapshot is an immutable, published aggregation result.
// A new Snapshot replaces the previous one wholesale on every successful load.
type Snapshot struct {
	Result   Result    `json:"result"`
	Charts   ChartSet  `json:"charts"`
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loadedAt"`
	// LastError is the most recent failed load, if it happened after LoadedAt.
	LastError string `json:"lastError,omitempty"`
}

// Loaded reports whether the snapshot came from a successful load.
func (s *Snapshot) Loaded() bool {
	return s != nil && !s.LoadedAt.IsZero()
}
