package domain

// BatchRun represents one normalization run over a batch of raw listings.
// Corresponds to batch_runs table in PostgreSQL.
type BatchRun struct {
	RunID        string // UUID assigned by the orchestrator
	StartedAtMs  int64  // run start (ms)
	FinishedAtMs int64  // run end (ms)

	// Input window. The batch was every stored capture from Sources with
	// TimestampMs in [WindowFromMs, WindowToMs]; replaying the run reloads
	// the same window.
	Sources      []string
	WindowFromMs int64
	WindowToMs   int64

	Received int // raw listings in the batch
	Accepted int // normalized records produced
	Rejected int // rejected records produced

	RejectedByReason map[RejectReason]int // per-reason rejection counts
}
