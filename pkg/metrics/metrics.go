package metrics

// Counter is a monotonically increasing named metric. Implementations must
// support concurrent increment from multiple shard workers.
type Counter interface {
	Increment(delta float64)
}

// Summary records observations into a named distribution.
type Summary interface {
	Record(value float64)
}

// Provider hands out named counters and summaries. Repeated calls with the
// same name must return instruments backed by the same series.
type Provider interface {
	Counter(name string) Counter
	Summary(name string) Summary
}

type nopCounter struct{}

func (nopCounter) Increment(float64) {}

type nopSummary struct{}

func (nopSummary) Record(float64) {}

// Nop is a Provider that discards everything.
type Nop struct{}

func (Nop) Counter(string) Counter { return nopCounter{} }
func (Nop) Summary(string) Summary { return nopSummary{} }
