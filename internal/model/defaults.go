package model

import "time"

// Shared defaults used by both the service and TUI binaries.
const (
	DefaultSource          = "data.json"
	DefaultRefreshInterval = time.Duration(0) // 0 = load once
	DefaultFetchTimeout    = 30 * time.Second
	DefaultFetchRetries    = 3
)
