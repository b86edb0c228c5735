package domain

import "time"

// SourceStats holds per-source counters for one run.
type SourceStats struct {
	SourceID  string        `json:"source_id"`
	Kind      SourceKind    `json:"kind"`
	Fetched   int           `json:"fetched"`
	Inserted  int           `json:"inserted"`
	Upserted  int           `json:"upserted"`
	Errored   int           `json:"errored"`
	Dropped   int           `json:"dropped"`
	Published int           `json:"published,omitempty"`
	Duration  time.Duration `json:"duration"`
	Err       string        `json:"error,omitempty"`
}

// RunReport summarizes one orchestrator pass. It is logged and returned to the
// trigger caller, never stored.
type RunReport struct {
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
	Sources          []SourceStats `json:"sources"`
	TotalFetched     int           `json:"total_fetched"`
	TotalInserted    int           `json:"total_inserted"`
	TotalUpserted    int           `json:"total_upserted"`
	TotalErrored     int           `json:"total_errored"`
	NewestItemAt     *time.Time    `json:"newest_item_at,omitempty"`
	StalenessMinutes *float64      `json:"staleness_minutes,omitempty"`
	ZeroYieldSources []string      `json:"zero_yield_sources"`
	Errors           []string      `json:"errors"`
}

// Failed reports whether the run should surface as a failure: nothing was
// fetched and at least one error was recorded. A quiet run is not a failure.
func (r *RunReport) Failed() bool {
	return r.TotalFetched == 0 && len(r.Errors) > 0
}

// SourceState tracks per-source health across runs.
type SourceState struct {
	SourceID              string    `db:"source_id"`
	LastRunAt             time.Time `db:"last_run_at"`
	LastItemCount         int       `db:"last_item_count"`
	TotalIngested         int64     `db:"total_ingested"`
	ConsecutiveZeroYields int       `db:"consecutive_zero_yields"`
	LastError             *string   `db:"last_error"`
}
