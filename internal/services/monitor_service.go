package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"water-monitor/internal/aggregator"
	"water-monitor/internal/alerting"
	"water-monitor/internal/logger"
	"water-monitor/internal/metrics"
	"water-monitor/internal/models"
	"water-monitor/internal/supervisor"
)

// DisplaySink renders the live view. Implementations must not block.
type DisplaySink interface {
	ShowReading(view models.ReadingView, history []aggregator.HistoryPoint)
	ShowStatus(st supervisor.Status)
}

// AlertDispatcher hands an alert request to the notifiers asynchronously.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, req *models.AlertRequest)
}

// MonitorService classifies readings, keeps the history window, feeds the
// display and asks the alert engine whether to notify.
type MonitorService struct {
	history    *aggregator.History
	engine     *alerting.Engine
	dispatcher AlertDispatcher
	display    DisplaySink
	log        zerolog.Logger

	// Input channel (normally the supervisor's Readings channel)
	ReadingChan chan models.Reading

	mu         sync.RWMutex
	thresholds models.Thresholds
	latest     *models.ReadingView
}

// MonitorServiceConfig holds configuration for the monitor service
type MonitorServiceConfig struct {
	Thresholds  models.Thresholds
	ChannelSize int
}

// DefaultMonitorServiceConfig returns default configuration
func DefaultMonitorServiceConfig() MonitorServiceConfig {
	return MonitorServiceConfig{
		Thresholds:  models.DefaultThresholds(),
		ChannelSize: supervisor.DefaultBufferSize,
	}
}

// NewMonitorService creates a new monitor service. display and dispatcher
// may be nil.
func NewMonitorService(
	history *aggregator.History,
	engine *alerting.Engine,
	dispatcher AlertDispatcher,
	display DisplaySink,
	config MonitorServiceConfig,
) *MonitorService {
	if config.ChannelSize <= 0 {
		config.ChannelSize = supervisor.DefaultBufferSize
	}
	return &MonitorService{
		history:     history,
		engine:      engine,
		dispatcher:  dispatcher,
		display:     display,
		log:         logger.WithComponent("monitor"),
		ReadingChan: make(chan models.Reading, config.ChannelSize),
		thresholds:  config.Thresholds,
	}
}

// Start processes readings until ctx is cancelled.
func (m *MonitorService) Start(ctx context.Context) {
	m.log.Info().
		Float64("warning", m.Thresholds().Warning).
		Float64("hazard", m.Thresholds().Hazard).
		Msg("starting")

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("shutdown complete")
			return
		case reading, ok := <-m.ReadingChan:
			if !ok {
				return
			}
			m.ProcessReading(ctx, reading)
		}
	}
}

// ProcessReading runs one reading through classification, history, display
// and the alert engine.
func (m *MonitorService) ProcessReading(ctx context.Context, r models.Reading) models.ReadingView {
	view := models.NewReadingView(r, m.Thresholds())

	m.history.Append(aggregator.HistoryPoint{
		Timestamp: r.ObservedAt,
		Value:     r.Value,
		Severity:  view.Severity,
	})

	m.mu.Lock()
	m.latest = &view
	m.mu.Unlock()

	metrics.WaterLevel.Set(r.Value)
	metrics.CurrentSeverity.Set(float64(view.Severity))

	m.log.Debug().
		Float64("value", r.Value).
		Str("severity", view.Severity.String()).
		Msg("reading")

	if m.display != nil {
		m.display.ShowReading(view, m.history.Snapshot())
	}

	m.considerAlert(ctx, r, view.Severity)
	return view
}

func (m *MonitorService) considerAlert(ctx context.Context, r models.Reading, sev models.Severity) {
	if m.engine == nil {
		return
	}

	req, err := m.engine.Consider(r, sev)
	if sev.Alertable() {
		metrics.AlertDecisionsTotal.WithLabelValues(sev.String(), alerting.Reason(err)).Inc()
	}
	if err != nil {
		if !alerting.IsSuppressed(err) {
			m.log.Error().Err(err).Msg("alert engine")
		} else if sev.Alertable() {
			m.log.Debug().Str("reason", alerting.Reason(err)).Str("severity", sev.String()).Msg("alert suppressed")
		}
		return
	}

	m.log.Info().
		Str("alert_id", req.ID.String()).
		Str("severity", sev.String()).
		Float64("value", r.Value).
		Msg("alert triggered")

	if m.dispatcher == nil {
		m.engine.MarkFailed(req)
		return
	}
	m.dispatcher.Dispatch(ctx, req)
}

// Thresholds returns the configured thresholds.
func (m *MonitorService) Thresholds() models.Thresholds {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.thresholds
}

// SetThresholds replaces the thresholds used for subsequent readings.
func (m *MonitorService) SetThresholds(t models.Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.thresholds = t
	m.mu.Unlock()
	return nil
}

// Latest returns the most recent reading view, if any.
func (m *MonitorService) Latest() (models.ReadingView, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return models.ReadingView{}, false
	}
	return *m.latest, true
}

// History returns an oldest-first copy of the rolling window.
func (m *MonitorService) History() []aggregator.HistoryPoint {
	return m.history.Snapshot()
}

// Reset clears the latest reading and the history window.
func (m *MonitorService) Reset() {
	m.history.Reset()
	m.mu.Lock()
	m.latest = nil
	m.mu.Unlock()
}
