package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Severity is the ordered classification of a reading.
type Severity int

const (
	SeveritySafe Severity = iota
	SeverityModerate
	SeverityWarning
	SeverityHazard
)

// ModerateLevel is fixed; only warning and hazard are configurable.
const ModerateLevel = 50.0

const (
	DefaultWarningThreshold = 70.0
	DefaultHazardThreshold  = 80.0
)

var ErrInvalidThreshold = errors.New("invalid threshold")

func (s Severity) String() string {
	switch s {
	case SeveritySafe:
		return "SAFE"
	case SeverityModerate:
		return "MODERATE"
	case SeverityWarning:
		return "WARNING"
	case SeverityHazard:
		return "HAZARD"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Label is the status text shown next to the gauge.
func (s Severity) Label() string {
	switch s {
	case SeverityHazard:
		return "FLOOD HAZARD!"
	case SeverityWarning:
		return "HIGH - WARNING"
	case SeverityModerate:
		return "MODERATE"
	default:
		return "SAFE"
	}
}

// Alertable reports whether readings of this severity may raise an alert.
func (s Severity) Alertable() bool {
	return s == SeverityWarning || s == SeverityHazard
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(text))) {
	case "SAFE":
		*s = SeveritySafe
	case "MODERATE":
		*s = SeverityModerate
	case "WARNING":
		*s = SeverityWarning
	case "HAZARD", "FLOOD_HAZARD":
		*s = SeverityHazard
	default:
		return fmt.Errorf("unknown severity %q", string(text))
	}
	return nil
}

// Thresholds are the inclusive lower bounds of Warning and Hazard.
// Warning < Hazard is expected but not enforced; Hazard is checked first.
type Thresholds struct {
	Warning float64 `json:"warning"`
	Hazard  float64 `json:"hazard"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Warning: DefaultWarningThreshold, Hazard: DefaultHazardThreshold}
}

// For applies the reading's hazard override, if any.
func (t Thresholds) For(r Reading) Thresholds {
	if r.HazardThreshold != nil {
		t.Hazard = *r.HazardThreshold
	}
	return t
}

// Validate rejects non-finite values.
func (t Thresholds) Validate() error {
	if math.IsNaN(t.Warning) || math.IsInf(t.Warning, 0) {
		return fmt.Errorf("%w: warning %v", ErrInvalidThreshold, t.Warning)
	}
	if math.IsNaN(t.Hazard) || math.IsInf(t.Hazard, 0) {
		return fmt.Errorf("%w: hazard %v", ErrInvalidThreshold, t.Hazard)
	}
	return nil
}

// Inverted reports whether the warning band lies above the hazard band.
func (t Thresholds) Inverted() bool {
	return t.Warning >= t.Hazard
}

// Classify maps a value onto a severity. Boundaries belong to the higher band.
func Classify(value float64, t Thresholds) Severity {
	switch {
	case value >= t.Hazard:
		return SeverityHazard
	case value >= t.Warning:
		return SeverityWarning
	case value >= ModerateLevel:
		return SeverityModerate
	default:
		return SeveritySafe
	}
}
