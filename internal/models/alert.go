package models

import (
	"time"

	"github.com/google/uuid"
)

// Wire values of AlertPayload.Status.
const (
	AlertStatusHazard  = "FLOOD_HAZARD"
	AlertStatusWarning = "WARNING"
)

// AlertRequest is an instruction to notify. It is never mutated after the
// alert engine creates it.
type AlertRequest struct {
	ID          uuid.UUID `json:"id"`
	Severity    Severity  `json:"severity"`
	Reading     Reading   `json:"reading"`
	GeneratedAt time.Time `json:"generated_at"`
}

// NewAlertRequest stamps a new request with a random id.
func NewAlertRequest(sev Severity, r Reading, at time.Time) *AlertRequest {
	return &AlertRequest{
		ID:          uuid.New(),
		Severity:    sev,
		Reading:     r,
		GeneratedAt: at,
	}
}

// Status returns the wire status for the request's severity.
func (a *AlertRequest) Status() string {
	return AlertStatusFor(a.Severity)
}

// Payload is the outbound body sent to notifiers.
func (a *AlertRequest) Payload() AlertPayload {
	return AlertPayload{
		WaterLevel: a.Reading.Value,
		Status:     a.Status(),
		Timestamp:  a.GeneratedAt.Format(time.RFC3339),
	}
}

// AlertStatusFor maps an alertable severity onto its wire status.
func AlertStatusFor(s Severity) string {
	if s == SeverityHazard {
		return AlertStatusHazard
	}
	return AlertStatusWarning
}

// SeverityForStatus is the inverse used by the relay: anything that is not
// FLOOD_HAZARD is treated as a warning.
func SeverityForStatus(status string) Severity {
	if status == AlertStatusHazard {
		return SeverityHazard
	}
	return SeverityWarning
}

// AlertPayload is the body posted to the alert relay.
type AlertPayload struct {
	WaterLevel float64 `json:"waterLevel"`
	Status     string  `json:"status"`
	Timestamp  string  `json:"timestamp,omitempty"`
}

// AlertResponse is the relay's reply.
type AlertResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	CooldownUntil string `json:"cooldownUntil,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Dispatch outcomes stored in AlertRecord.Outcome.
const (
	OutcomeSent        = "sent"
	OutcomeFailed      = "failed"
	OutcomeRateLimited = "rate_limited"
)

// AlertRecord is one dispatch attempt as written to the audit log.
type AlertRecord struct {
	ID         uuid.UUID `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Severity   Severity  `json:"severity"`
	Status     string    `json:"status"`
	WaterLevel float64   `json:"waterLevel"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	LatencyMs  float64   `json:"latency_ms"`
}

// NewAlertRecord describes the outcome of dispatching req.
func NewAlertRecord(req *AlertRequest, outcome string, err error, at time.Time, latency time.Duration) *AlertRecord {
	rec := &AlertRecord{
		ID:         req.ID,
		Timestamp:  at,
		Severity:   req.Severity,
		Status:     req.Status(),
		WaterLevel: req.Reading.Value,
		Outcome:    outcome,
		LatencyMs:  float64(latency.Microseconds()) / 1000,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}
