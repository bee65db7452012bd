// Package aggregate turns alert records into the frequency counts behind the
// dashboard charts.
package aggregate

import (
	"strings"

	"github.com/tinytelemetry/alertscope/internal/model"
)

// dateTimeSeparator splits the date from the time in an ISO-8601 timestamp.
const dateTimeSeparator = 'T'

// DateKey returns the date component of an ISO-8601 date-time: everything
// before the first 'T'. It reports false when the separator is missing.
func DateKey(timestamp string) (string, bool) {
	i := strings.IndexByte(timestamp, dateTimeSeparator)
	if i < 0 {
		return "", false
	}
	return timestamp[:i], true
}

// Aggregate counts records by source IP, alert category and date in a single
// pass. Each projection is computed independently per record, so a missing or
// malformed field only drops that record from its own map. Aggregate never
// fails and never modifies records.
func Aggregate(records []model.AlertRecord) model.Result {
	res := model.Result{Records: len(records)}

	for i := range records {
		rec := &records[i]

		if rec.SourceIP != nil {
			res.BySourceIP.Inc(*rec.SourceIP)
		} else {
			res.Skipped.SourceIP++
		}

		if rec.AlertCategory != nil {
			res.ByCategory.Inc(*rec.AlertCategory)
		} else {
			res.Skipped.Category++
		}

		if rec.Timestamp == nil {
			res.Skipped.Date++
			continue
		}
		if date, ok := DateKey(*rec.Timestamp); ok {
			res.ByDate.Inc(date)
		} else {
			res.Skipped.Date++
			res.Skipped.MalformedTimestamp++
		}
	}

	return res
}

// Charts projects a Result into the series consumed by chart renderers.
// Every series keeps the key order of its frequency map.
func Charts(res model.Result) model.ChartSet {
	set := model.ChartSet{
		Bar:        xySeries(res.BySourceIP),
		Pie:        make([]model.LabelValue, 0, res.ByCategory.Len()),
		TimeSeries: xySeries(res.ByDate),
	}
	for _, p := range res.ByCategory.Points() {
		set.Pie = append(set.Pie, model.LabelValue{Labels: p.Key, Values: p.Count})
	}
	return set
}

func xySeries(f model.FrequencyMap) []model.XY {
	out := make([]model.XY, 0, f.Len())
	for _, p := range f.Points() {
		out = append(out, model.XY{X: p.Key, Y: p.Count})
	}
	return out
}
