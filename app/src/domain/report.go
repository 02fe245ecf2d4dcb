package domain

import "time"

// Report is the ordered result of one fan-out fetch. Samples[i] corresponds
// to the i-th requested source identifier, duplicates included.
type Report struct {
	BatchID     string
	RequestedAt time.Time
	CompletedAt time.Time
	Samples     []Sample
}

// Outcome is the per-item result used in collect mode: either a sample or
// the error that prevented its retrieval.
type Outcome struct {
	SourceID string
	Sample   Sample
	Err      error
}

// OK reports whether the retrieval behind this outcome succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// OutcomeReport is the collect-mode counterpart of Report: a complete
// ordered sequence of per-item outcomes, one per requested identifier.
type OutcomeReport struct {
	BatchID     string
	RequestedAt time.Time
	CompletedAt time.Time
	Outcomes    []Outcome
}

// BatchSample is a persisted sample together with its position inside the
// batch that produced it. Seq preserves the request ordering across storage.
type BatchSample struct {
	BatchID   string
	Seq       int
	SourceID  string
	Value     float64
	Timestamp time.Time
}
