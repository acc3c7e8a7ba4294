package models

// SyncOptions carries the per-batch feature toggles supplied by the caller
// that requested a sync (live feed or takeout).
type SyncOptions struct {
	SkipMedia         bool     `json:"skipMedia,omitempty"`
	SkipEmbedding     bool     `json:"skipEmbedding,omitempty"`
	DisabledResolvers []string `json:"disabledResolvers,omitempty"`
}

// Disabled reports whether the named resolver was explicitly disabled.
func (o SyncOptions) Disabled(name string) bool {
	for _, n := range o.DisabledResolvers {
		if n == name {
			return true
		}
	}
	return false
}

// ProcessOptions controls a single orchestrator batch.
type ProcessOptions struct {
	Takeout      bool
	SyncOptions  SyncOptions
	ForceRefetch bool
	BatchID      string
	TenantID     string
}

// ResolverSpan records the wall-clock duration and item count of one resolver
// within a batch, for the batch-processed telemetry event.
type ResolverSpan struct {
	Resolver   string `json:"resolver"`
	DurationMs int64  `json:"durationMs"`
	Count      int    `json:"count"`
}

// BatchResult is the payload of the batch-processed telemetry event.
type BatchResult struct {
	BatchID string         `json:"batchId"`
	Count   int            `json:"count"`
	Spans   []ResolverSpan `json:"spans"`
}
