package models

import "time"

// Reading is one normalized water level sample. Value is a percentage
// (0-100 expected) and is never clamped.
type Reading struct {
	Value      float64   `json:"value"`
	ObservedAt time.Time `json:"observed_at"`

	// HazardThreshold overrides the configured hazard threshold for this
	// reading only. Nil when the sensor did not send one.
	HazardThreshold *float64 `json:"hazard_threshold,omitempty"`
}

// NewReading builds a reading without a threshold override.
func NewReading(value float64, observedAt time.Time) Reading {
	return Reading{Value: value, ObservedAt: observedAt}
}

// ReadingView is what the display layer renders for the latest reading.
type ReadingView struct {
	Value      float64    `json:"waterLevel"`
	Severity   Severity   `json:"severity"`
	Status     string     `json:"status"`
	ObservedAt time.Time  `json:"timestamp"`
	Thresholds Thresholds `json:"thresholds"`
}

// NewReadingView classifies r against t and attaches the display label.
func NewReadingView(r Reading, t Thresholds) ReadingView {
	effective := t.For(r)
	sev := Classify(r.Value, effective)
	return ReadingView{
		Value:      r.Value,
		Severity:   sev,
		Status:     sev.Label(),
		ObservedAt: r.ObservedAt,
		Thresholds: effective,
	}
}
