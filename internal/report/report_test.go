package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/alertscope/internal/aggregate"
	"github.com/tinytelemetry/alertscope/internal/model"
)

func testSnapshot() *model.Snapshot {
	res := aggregate.Aggregate([]model.AlertRecord{
		{Timestamp: model.Str("2023-01-02T09:00:00Z"), SourceIP: model.Str("2.2.2.2"), AlertCategory: model.Str("scan")},
		{Timestamp: model.Str("2023-01-01T10:00:00Z"), SourceIP: model.Str("1.1.1.1"), AlertCategory: model.Str("scan")},
		{Timestamp: model.Str("2023-01-01T11:00:00Z"), SourceIP: model.Str("1.1.1.1"), AlertCategory: model.Str("dos")},
		{Timestamp: model.Str("bogus")},
	})
	return &model.Snapshot{
		Result:   res,
		Charts:   aggregate.Charts(res),
		Source:   "data.json",
		LoadedAt: time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC),
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Format{"": FormatText, "JSON": FormatJSON, " yaml ": FormatYAML, "text": FormatText} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestWrite_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testSnapshot(), FormatJSON))

	var doc struct {
		Source      string `json:"source"`
		LoadedAt    string `json:"loadedAt"`
		Records     int    `json:"records"`
		Charts      model.ChartSet
		Frequencies struct {
			BySourceIP model.FrequencyMap `json:"bySourceIp"`
			ByDate     model.FrequencyMap `json:"byDate"`
		} `json:"frequencies"`
		Skipped model.SkipCounts `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "data.json", doc.Source)
	assert.Equal(t, "2024-05-01T08:30:00Z", doc.LoadedAt)
	assert.Equal(t, 4, doc.Records)
	assert.Equal(t, []string{"2.2.2.2", "1.1.1.1"}, doc.Frequencies.BySourceIP.Keys())
	assert.Equal(t, []string{"2023-01-02", "2023-01-01"}, doc.Frequencies.ByDate.Keys())
	assert.Equal(t, []model.XY{{X: "2.2.2.2", Y: 1}, {X: "1.1.1.1", Y: 2}}, doc.Charts.Bar)
	assert.Equal(t, 1, doc.Skipped.MalformedTimestamp)
}

func TestWrite_YAMLKeepsOrder(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testSnapshot(), FormatYAML))
	out := buf.String()

	// Key order in the output follows first appearance, not sort order.
	assert.Less(t, strings.Index(out, "2.2.2.2"), strings.Index(out, "1.1.1.1"))
	assert.Less(t, strings.Index(out, "2023-01-02"), strings.Index(out, "2023-01-01"))

	var doc struct {
		Records     int `yaml:"records"`
		Frequencies struct {
			ByCategory map[string]int `yaml:"byCategory"`
			ByDate     map[string]int `yaml:"byDate"`
		} `yaml:"frequencies"`
		Skipped map[string]int `yaml:"skipped"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, 4, doc.Records)
	assert.Equal(t, map[string]int{"scan": 2, "dos": 1}, doc.Frequencies.ByCategory)
	// Dates must stay strings, not YAML timestamps.
	assert.Equal(t, map[string]int{"2023-01-02": 1, "2023-01-01": 2}, doc.Frequencies.ByDate)
	assert.Equal(t, 1, doc.Skipped["malformedTimestamp"])
}

func TestWrite_Text(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testSnapshot(), FormatText))
	out := buf.String()

	for _, want := range []string{
		"alertscope report",
		"data.json",
		"Alerts by source IP",
		"1.1.1.1",
		"Alerts by category",
		"Alerts by date",
		"(1 records without this field)",
		"1 timestamps had no date/time separator",
	} {
		assert.Contains(t, out, want)
	}
}

func TestWrite_EmptySnapshot(t *testing.T) {
	t.Parallel()

	res := aggregate.Aggregate(nil)
	snap := &model.Snapshot{Result: res, Charts: aggregate.Charts(res), Source: "empty.json"}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, snap, FormatText))
	assert.Contains(t, buf.String(), "(none)")
	assert.NotContains(t, buf.String(), "loaded:")

	buf.Reset()
	require.NoError(t, Write(&buf, snap, FormatJSON))
	assert.Contains(t, buf.String(), `"bar": []`)
}

func TestWrite_Errors(t *testing.T) {
	t.Parallel()

	assert.Error(t, Write(&bytes.Buffer{}, nil, FormatJSON))
	assert.Error(t, Write(&bytes.Buffer{}, testSnapshot(), Format("xml")))
}
