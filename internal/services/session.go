package services

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"water-monitor/internal/aggregator"
	"water-monitor/internal/alerting"
	"water-monitor/internal/logger"
	"water-monitor/internal/models"
	"water-monitor/internal/supervisor"
)

// Session is the control surface: it starts and stops the sensor
// subscription and adjusts alerting and thresholds at runtime.
type Session struct {
	supervisor *supervisor.Supervisor
	monitor    *MonitorService
	engine     *alerting.Engine
	log        zerolog.Logger

	mu     sync.Mutex
	target string // last started, kept across Stop
}

// SessionStatus is the combined view served by the status endpoint.
type SessionStatus struct {
	Connection    supervisor.Status      `json:"connection"`
	Latest        *models.ReadingView    `json:"latest,omitempty"`
	Thresholds    models.Thresholds      `json:"thresholds"`
	AlertsEnabled bool                   `json:"alerts_enabled"`
	Strategy      string                 `json:"strategy"`
	Cooldown      string                 `json:"cooldown"`
	Memory        alerting.Memory        `json:"memory"`
	NextAlert     map[string]string      `json:"next_alert_in"`
	Window        aggregator.WindowStats `json:"window"`
}

func NewSession(sup *supervisor.Supervisor, monitor *MonitorService, engine *alerting.Engine) *Session {
	return &Session{
		supervisor: sup,
		monitor:    monitor,
		engine:     engine,
		log:        logger.WithComponent("session"),
	}
}

// Start parses a "host:port" address and starts supervising it.
func (s *Session) Start(addr string) error {
	target, err := models.ParseTargetAddr(addr)
	if err != nil {
		s.supervisor.RejectTarget(err)
		return err
	}
	return s.startTarget(target)
}

// StartTarget is Start with the host and port entered separately.
func (s *Session) StartTarget(host, port string) error {
	target, err := models.ParseTarget(host, port)
	if err != nil {
		s.supervisor.RejectTarget(err)
		return err
	}
	return s.startTarget(target)
}

// startTarget begins a new session. Alert memory belongs to one session and
// is cleared on every start; history is cleared only when the sensor changes.
func (s *Session) startTarget(target models.Target) error {
	if err := s.supervisor.Start(target); err != nil {
		return err
	}

	s.mu.Lock()
	changed := s.target != "" && s.target != target.Addr()
	s.target = target.Addr()
	s.mu.Unlock()

	s.engine.Reset()
	if changed {
		s.monitor.Reset()
	}
	s.log.Info().Str("target", target.Addr()).Bool("history_cleared", changed).Msg("session started")
	return nil
}

// Stop ends the subscription. History is kept so the chart survives a
// restart against the same sensor.
func (s *Session) Stop() {
	s.supervisor.Stop()
	s.log.Info().Msg("session stopped")
}

// SetAlertsEnabled toggles notifications; any change clears alert memory.
func (s *Session) SetAlertsEnabled(enabled bool) {
	s.engine.SetEnabled(enabled)
}

// AlertsEnabled reports whether notifications are on.
func (s *Session) AlertsEnabled() bool {
	return s.engine.Enabled()
}

// SetThresholds updates warning and hazard levels for subsequent readings.
// Inverted thresholds are accepted; the hazard band takes precedence.
func (s *Session) SetThresholds(warning, hazard float64) error {
	t := models.Thresholds{Warning: warning, Hazard: hazard}
	if err := s.monitor.SetThresholds(t); err != nil {
		return err
	}
	if t.Inverted() {
		s.log.Warn().Float64("warning", warning).Float64("hazard", hazard).
			Msg("warning threshold is not below hazard threshold; warning band unreachable")
	}
	s.log.Info().Float64("warning", warning).Float64("hazard", hazard).Msg("thresholds updated")
	return nil
}

// Thresholds returns the active thresholds.
func (s *Session) Thresholds() models.Thresholds {
	return s.monitor.Thresholds()
}

// History returns the rolling window, oldest first.
func (s *Session) History() []aggregator.HistoryPoint {
	return s.monitor.History()
}

// Status reports connection, latest reading and alerting state.
func (s *Session) Status() SessionStatus {
	cfg := s.engine.Config()
	history := s.monitor.History()
	st := SessionStatus{
		Connection:    s.supervisor.Status(),
		Thresholds:    s.monitor.Thresholds(),
		AlertsEnabled: cfg.Enabled,
		Strategy:      cfg.Strategy.String(),
		Cooldown:      cfg.Cooldown.Round(time.Second).String(),
		Memory:        s.engine.Memory(),
		NextAlert:     make(map[string]string, 2),
		Window:        aggregator.Summarize(history),
	}
	for _, sev := range []models.Severity{models.SeverityWarning, models.SeverityHazard} {
		st.NextAlert[sev.String()] = s.engine.CooldownRemaining(sev).Round(time.Second).String()
	}
	if latest, ok := s.monitor.Latest(); ok {
		st.Latest = &latest
	}
	return st
}

// Snapshot is the initial frame for a newly connected display.
func (s *Session) Snapshot() interface{} {
	return struct {
		Status  SessionStatus             `json:"status"`
		History []aggregator.HistoryPoint `json:"history"`
	}{
		Status:  s.Status(),
		History: s.monitor.History(),
	}
}
