package duckdb

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/tinytelemetry/alertscope/internal/model"
)

// ErrUnknownDimension is returned by TopValues for a name not in Dimensions.
var ErrUnknownDimension = errors.New("unknown dimension")

// maxQueryRows caps the rows returned by ExecuteQuery.
const maxQueryRows = 1000

// dangerousKeywordPattern matches dangerous SQL keywords at word boundaries.
// This avoids false positives like "RESET" matching "SET".
var dangerousKeywordPattern = regexp.MustCompile(
	`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|COPY|ATTACH|DETACH|LOAD|EXPORT|IMPORT|INSTALL|CALL|EXECUTE|PRAGMA|SET)\b`,
)

// blockCommentPattern matches C-style block comments (/* ... */).
var blockCommentPattern = regexp.MustCompile(`/\*[\s\S]*?\*/`)

// dimensionColumns maps public dimension names to alerts columns.
var dimensionColumns = map[string]string{
	"source_ip":  "source_ip",
	"category":   "alert_category",
	"date":       "alert_date",
	"dest_ip":    "dest_ip",
	"signature":  "signature",
	"severity":   "CAST(severity AS VARCHAR)",
	"event_type": "event_type",
}

// stripSQLComments removes -- line comments and /* */ block comments from a query.
func stripSQLComments(query string) string {
	cleaned := blockCommentPattern.ReplaceAllString(query, " ")
	var result strings.Builder
	for _, line := range strings.Split(cleaned, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		result.WriteString(line)
		result.WriteByte('\n')
	}
	return result.String()
}

// validateReadOnly rejects anything but a single SELECT/WITH statement.
func validateReadOnly(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return fmt.Errorf("query is empty")
	}
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("query must not contain semicolons")
	}

	stripped := strings.TrimSpace(stripSQLComments(trimmed))
	upper := strings.ToUpper(stripped)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("only SELECT/WITH queries are allowed")
	}
	if match := dangerousKeywordPattern.FindString(stripped); match != "" {
		return fmt.Errorf("query contains disallowed keyword: %s", strings.ToUpper(match))
	}
	return nil
}

// queryCtx returns a context with the store's configured query timeout.
func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}

// ExecuteQuery runs a read-only SQL query and returns results as maps.
func (s *Store) ExecuteQuery(query string) ([]map[string]interface{}, error) {
	_, results, err := s.ExecuteQueryColumns(query)
	return results, err
}

// ExecuteQueryColumns is ExecuteQuery plus the result columns in select order.
func (s *Store) ExecuteQueryColumns(query string) ([]string, []map[string]interface{}, error) {
	if err := validateReadOnly(query); err != nil {
		return nil, nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	results := make([]map[string]interface{}, 0)
	for rows.Next() && len(results) < maxQueryRows {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			log.Printf("duckdb scan error (ExecuteQuery): %v", err)
			continue
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}

	return columns, results, rows.Err()
}

// AlertCount returns the number of alerts in the current snapshot table.
func (s *Store) AlertCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&count)
	return count, err
}

// TopValues returns the most frequent non-null values of a dimension.
// Ties are broken by first appearance in the snapshot.
func (s *Store) TopValues(dimension string, limit int) ([]model.ChartPoint, error) {
	column, ok := dimensionColumns[dimension]
	if !ok {
		return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownDimension, dimension, strings.Join(Dimensions(), ", "))
	}
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	// Column expressions come from the allowlist above, never from input.
	query := fmt.Sprintf(`
		SELECT %[1]s AS dim_value, COUNT(*) AS n, MIN(seq) AS first_seq
		FROM alerts
		WHERE %[1]s IS NOT NULL
		GROUP BY dim_value
		ORDER BY n DESC, first_seq ASC
		LIMIT ?`, column)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]model.ChartPoint, 0, limit)
	for rows.Next() {
		var p model.ChartPoint
		var firstSeq int64
		if err := rows.Scan(&p.Key, &p.Count, &firstSeq); err != nil {
			log.Printf("duckdb scan error (TopValues): %v", err)
			continue
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// Dimensions lists the names accepted by TopValues.
func Dimensions() []string {
	return []string{"source_ip", "category", "date", "dest_ip", "signature", "severity", "event_type"}
}

// GetSchemaDescription returns a human-readable schema description.
func (s *Store) GetSchemaDescription() string {
	return `Table 'alerts' (current snapshot only): seq (BIGINT, input order), timestamp (VARCHAR, as received), ` +
		`alert_date (VARCHAR, date part of timestamp), source_ip (VARCHAR), alert_category (VARCHAR), ` +
		`dest_ip (VARCHAR), signature (VARCHAR), severity (INTEGER), event_type (VARCHAR). ` +
		`Absent fields are NULL.`
}

// TableRowCounts returns the row count for each known table using a hardcoded allowlist.
func (s *Store) TableRowCounts() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	allowedTables := []string{"alerts"}
	counts := make(map[string]int64, len(allowedTables))

	for _, table := range allowedTables {
		var count int64
		err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
		if err != nil {
			return nil, err
		}
		counts[table] = count
	}
	return counts, nil
}
