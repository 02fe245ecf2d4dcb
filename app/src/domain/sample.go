package domain

import "time"

// Sample is one simulated measurement tied to one source identifier.
type Sample struct {
	SourceID  string
	Value     float64
	Timestamp time.Time
}
