// Package metrics defines the narrow metrics surface the service reports
// through. Backends (Datadog, or Nop when disabled) live in subpackages.
package metrics

import "time"

// Metric names. Backends ignore names they do not know.
const (
	InferencesTotal      = "grid_inferences_total"       // labels: source
	ColumnsGuessedTotal  = "grid_columns_guessed_total"  // labels: type
	RowsScannedTotal     = "grid_rows_scanned_total"     // no labels
	InferDurationSeconds = "grid_infer_duration_seconds" // labels: source
)

// Labels are metric dimensions such as {"source": "csv"}.
type Labels map[string]string

// Backend receives counter increments and histogram observations.
// Implementations must be safe for concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}

var _ Backend = Nop{}

// Inference summarizes one completed column inference.
type Inference struct {
	Source   string   // "json", "csv", "html", "parquet" or a catalog key
	Rows     int      // rows in the source
	Guessed  []string // type names of the guessed columns
	Duration time.Duration
}

// RecordInference reports inf on b. A nil backend is treated as Nop.
func RecordInference(b Backend, inf Inference) {
	if b == nil {
		return
	}
	b.IncCounter(InferencesTotal, 1, Labels{"source": inf.Source})
	b.IncCounter(RowsScannedTotal, float64(inf.Rows), nil)
	for _, t := range inf.Guessed {
		b.IncCounter(ColumnsGuessedTotal, 1, Labels{"type": t})
	}
	b.ObserveHistogram(InferDurationSeconds, inf.Duration.Seconds(), Labels{"source": inf.Source})
}
