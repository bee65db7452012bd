package model

import "context"

// SnapshotProvider is the read contract for chart surfaces (HTTP, socket RPC, TUI).
type SnapshotProvider interface {
	Snapshot() (*Snapshot, error)
	Reload(ctx context.Context) (*Snapshot, error)
}

// SchemaQuerier provides schema introspection and arbitrary read-only queries.
type SchemaQuerier interface {
	ExecuteQuery(query string) ([]map[string]interface{}, error)
	GetSchemaDescription() string
	TableRowCounts() (map[string]int64, error)
}

// AlertWriter replaces the queryable copy of the current alert records.
type AlertWriter interface {
	ReplaceAlerts(records []AlertRecord) error
}
