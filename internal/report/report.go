// Package report renders a snapshot for one-shot command line output.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/alertscope/internal/model"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

// ParseFormat validates a format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatJSON, FormatYAML, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want json, yaml or text)", s)
	}
}

// document is the JSON output shape.
type document struct {
	Source      string           `json:"source"`
	LoadedAt    string           `json:"loadedAt,omitempty"`
	Records     int              `json:"records"`
	Charts      model.ChartSet   `json:"charts"`
	Frequencies frequencies      `json:"frequencies"`
	Skipped     model.SkipCounts `json:"skipped"`
	LastError   string           `json:"lastError,omitempty"`
}

type frequencies struct {
	BySourceIP model.FrequencyMap `json:"bySourceIp"`
	ByCategory model.FrequencyMap `json:"byCategory"`
	ByDate     model.FrequencyMap `json:"byDate"`
}

// Write renders snap to w in the given format.
func Write(w io.Writer, snap *model.Snapshot, format Format) error {
	if snap == nil {
		return fmt.Errorf("report: nil snapshot")
	}
	switch format {
	case FormatJSON:
		return writeJSON(w, snap)
	case FormatYAML:
		return writeYAML(w, snap)
	case FormatText, "":
		return writeText(w, snap)
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}

func loadedAt(snap *model.Snapshot) string {
	if !snap.Loaded() {
		return ""
	}
	return snap.LoadedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
}

func writeJSON(w io.Writer, snap *model.Snapshot) error {
	doc := document{
		Source:   snap.Source,
		LoadedAt: loadedAt(snap),
		Records:  snap.Result.Records,
		Charts:   snap.Charts,
		Frequencies: frequencies{
			BySourceIP: snap.Result.BySourceIP,
			ByCategory: snap.Result.ByCategory,
			ByDate:     snap.Result.ByDate,
		},
		Skipped:   snap.Result.Skipped,
		LastError: snap.LastError,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// writeYAML builds the node tree by hand so frequency maps keep key order.
func writeYAML(w io.Writer, snap *model.Snapshot) error {
	root := mappingNode()
	addScalar(root, "source", snap.Source)
	if at := loadedAt(snap); at != "" {
		addScalar(root, "loadedAt", at)
	}
	addInt(root, "records", snap.Result.Records)

	freq := mappingNode()
	addNode(freq, "bySourceIp", frequencyNode(snap.Result.BySourceIP))
	addNode(freq, "byCategory", frequencyNode(snap.Result.ByCategory))
	addNode(freq, "byDate", frequencyNode(snap.Result.ByDate))
	addNode(root, "frequencies", freq)

	skipped := mappingNode()
	addInt(skipped, "sourceIp", snap.Result.Skipped.SourceIP)
	addInt(skipped, "category", snap.Result.Skipped.Category)
	addInt(skipped, "date", snap.Result.Skipped.Date)
	addInt(skipped, "malformedTimestamp", snap.Result.Skipped.MalformedTimestamp)
	addNode(root, "skipped", skipped)

	if snap.LastError != "" {
		addScalar(root, "lastError", snap.LastError)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return err
	}
	return enc.Close()
}

func mappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func addNode(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}

func addScalar(m *yaml.Node, key, value string) {
	addNode(m, key, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
}

func addInt(m *yaml.Node, key string, n int) {
	addNode(m, key, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(n)})
}

func frequencyNode(f model.FrequencyMap) *yaml.Node {
	m := mappingNode()
	for _, p := range f.Points() {
		addInt(m, p.Key, p.Count)
	}
	return m
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5FAFFF"))
	headingStyle = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

const textBarWidth = 30

func writeText(w io.Writer, snap *model.Snapshot) error {
	var b strings.Builder

	b.WriteString(titleStyle.Render("alertscope report"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n", dimStyle.Render("source: "), snap.Source)
	if at := loadedAt(snap); at != "" {
		fmt.Fprintf(&b, "%s %s\n", dimStyle.Render("loaded: "), at)
	}
	fmt.Fprintf(&b, "%s %d\n", dimStyle.Render("records:"), snap.Result.Records)
	if snap.LastError != "" {
		fmt.Fprintf(&b, "%s %s\n", dimStyle.Render("error:  "), snap.LastError)
	}

	sections := []struct {
		title   string
		f       model.FrequencyMap
		skipped int
	}{
		{"Alerts by source IP", snap.Result.BySourceIP, snap.Result.Skipped.SourceIP},
		{"Alerts by category", snap.Result.ByCategory, snap.Result.Skipped.Category},
		{"Alerts by date", snap.Result.ByDate, snap.Result.Skipped.Date},
	}
	for _, s := range sections {
		b.WriteString("\n")
		b.WriteString(headingStyle.Render(s.title))
		b.WriteString("\n")
		writeBars(&b, s.f)
		if s.skipped > 0 {
			fmt.Fprintf(&b, "%s\n", dimStyle.Render(fmt.Sprintf("  (%d records without this field)", s.skipped)))
		}
	}
	if n := snap.Result.Skipped.MalformedTimestamp; n > 0 {
		fmt.Fprintf(&b, "\n%s\n", dimStyle.Render(fmt.Sprintf("%d timestamps had no date/time separator", n)))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeBars(b *strings.Builder, f model.FrequencyMap) {
	points := f.Points()
	if len(points) == 0 {
		b.WriteString(dimStyle.Render("  (none)"))
		b.WriteString("\n")
		return
	}

	labelWidth, maxCount := 0, 0
	for _, p := range points {
		labelWidth = max(labelWidth, lipgloss.Width(displayKey(p.Key)))
		maxCount = max(maxCount, p.Count)
	}
	labelWidth = min(labelWidth, 40)

	for _, p := range points {
		fill := p.Count * textBarWidth / maxCount
		if fill == 0 {
			fill = 1
		}
		label := displayKey(p.Key)
		if pad := labelWidth - lipgloss.Width(label); pad > 0 {
			label += strings.Repeat(" ", pad)
		}
		fmt.Fprintf(b, "  %s %s %d\n", label, barStyle.Render(strings.Repeat("█", fill)), p.Count)
	}
}

func displayKey(k string) string {
	if k == "" {
		return `""`
	}
	return k
}
