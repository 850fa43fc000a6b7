package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"water-monitor/internal/alerting"
	"water-monitor/internal/clock"
	"water-monitor/internal/logger"
	"water-monitor/internal/metrics"
	"water-monitor/internal/models"
	"water-monitor/internal/notifier"
)

// AlertRecorder persists dispatch outcomes. The ClickHouse audit log
// implements it.
type AlertRecorder interface {
	SaveAlertOutcome(ctx context.Context, rec *models.AlertRecord) error
}

// AlertOutcome is what the display is told after a dispatch finishes.
type AlertOutcome struct {
	models.AlertRecord
	CooldownUntil *time.Time `json:"cooldownUntil,omitempty"`
}

// AlertServiceConfig holds configuration for alert dispatch
type AlertServiceConfig struct {
	SendTimeout time.Duration
}

// DefaultAlertServiceConfig returns default configuration
func DefaultAlertServiceConfig() AlertServiceConfig {
	return AlertServiceConfig{SendTimeout: 15 * time.Second}
}

// AlertService delivers alert requests on their own goroutines and reports
// the result back to the engine. Delivery is best effort with no retry.
type AlertService struct {
	engine   *alerting.Engine
	notifier notifier.Notifier
	recorder AlertRecorder
	clock    clock.Clock
	timeout  time.Duration
	log      zerolog.Logger

	// OnOutcome is called after every dispatch. Set before the first Dispatch.
	OnOutcome func(AlertOutcome)

	wg sync.WaitGroup
}

// NewAlertService creates a dispatcher. recorder may be nil; a nil clock
// means wall time.
func NewAlertService(
	engine *alerting.Engine,
	n notifier.Notifier,
	recorder AlertRecorder,
	clk clock.Clock,
	config AlertServiceConfig,
) *AlertService {
	if clk == nil {
		clk = clock.Real{}
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = DefaultAlertServiceConfig().SendTimeout
	}
	return &AlertService{
		engine:   engine,
		notifier: n,
		recorder: recorder,
		clock:    clk,
		timeout:  config.SendTimeout,
		log:      logger.WithComponent("alert-service"),
	}
}

// Dispatch sends req in the background.
func (s *AlertService) Dispatch(ctx context.Context, req *models.AlertRequest) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.deliver(ctx, req)
	}()
}

// Wait blocks until every in-flight dispatch has finished.
func (s *AlertService) Wait() {
	s.wg.Wait()
}

func (s *AlertService) deliver(ctx context.Context, req *models.AlertRequest) {
	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := s.clock.Now()
	wallStart := time.Now()
	err := s.notifier.Send(sendCtx, req)
	metrics.AlertDispatchDuration.Observe(time.Since(wallStart).Seconds())
	finished := s.clock.Now()

	log := s.log.With().
		Str("alert_id", req.ID.String()).
		Str("severity", req.Severity.String()).
		Float64("value", req.Reading.Value).
		Logger()

	outcome := AlertOutcome{}
	var rl *alerting.RateLimitedError
	switch {
	case err == nil:
		until := s.engine.MarkSent(req, finished)
		outcome.CooldownUntil = &until
		outcome.AlertRecord = *models.NewAlertRecord(req, models.OutcomeSent, nil, finished, finished.Sub(started))
		metrics.AlertDispatchTotal.WithLabelValues(req.Severity.String(), "success").Inc()
		log.Info().Time("cooldown_until", until).Msg("alert sent")

	case errors.As(err, &rl):
		s.engine.MarkFailed(req)
		outcome.AlertRecord = *models.NewAlertRecord(req, models.OutcomeRateLimited, err, finished, finished.Sub(started))
		metrics.AlertDispatchTotal.WithLabelValues(req.Severity.String(), "rate_limited").Inc()
		log.Info().Dur("retry_after", rl.RetryAfter).Msg("alert rate limited by relay")

	default:
		s.engine.MarkFailed(req)
		outcome.AlertRecord = *models.NewAlertRecord(req, models.OutcomeFailed, err, finished, finished.Sub(started))
		metrics.AlertDispatchTotal.WithLabelValues(req.Severity.String(), "failed").Inc()
		log.Error().Err(err).Msg("alert dispatch failed")
	}

	if s.recorder != nil {
		recCtx, recCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := s.recorder.SaveAlertOutcome(recCtx, &outcome.AlertRecord); err != nil {
			log.Warn().Err(err).Msg("failed to record alert outcome")
		}
		recCancel()
	}

	if s.OnOutcome != nil {
		s.OnOutcome(outcome)
	}
}
