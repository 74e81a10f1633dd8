package domain

// Execution status constants. Any other value is the exchange's own
// status string propagated verbatim.
const (
	ExecutionStatusExecuted = "executed"
	ExecutionStatusFailed   = "failed"
)

// ExecutionRecord is the audit row produced exactly once per accepted
// signal, regardless of exchange outcome. Corresponds to the executions
// table. Immutable after creation.
type ExecutionRecord struct {
	ExecutionID   string // deterministic hash
	Symbol        string
	Side          Side
	EntryPrice    float64  // price at which the alert fired
	ExecutedPrice *float64 // actual fill price, nil when no fill
	ExecutedQty   *float64 // actual filled quantity, nil when no fill
	Strategy      string
	Version       string
	Status        string // executed | failed | <exchange status>
	Notes         string // order id / failure reason
	Timestamp     int64  // ms since epoch
}

// Failed reports whether the execution did not reach the exchange or
// the exchange rejected it.
func (r *ExecutionRecord) Failed() bool {
	return r.Status == ExecutionStatusFailed
}
