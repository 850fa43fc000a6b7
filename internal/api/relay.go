package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"water-monitor/internal/alerting"
	"water-monitor/internal/clock"
	"water-monitor/internal/logger"
	"water-monitor/internal/models"
	"water-monitor/internal/notifier"
)

// AlertSender delivers formatted alert messages. *notifier.Telegram
// implements it.
type AlertSender interface {
	Configured() bool
	SendAlert(ctx context.Context, sev models.Severity, level float64, timestamp string) error
	SendText(ctx context.Context, text string) error
}

// RelayHandler is the alert relay: it accepts alert payloads over HTTP,
// applies a per-class cooldown and forwards them to Telegram.
type RelayHandler struct {
	sender AlertSender
	engine *alerting.Engine
	clock  clock.Clock
	log    zerolog.Logger
}

// NewRelayHandler builds a relay with its own cooldown-only dedup engine.
func NewRelayHandler(sender AlertSender, cooldown time.Duration, clk clock.Clock) *RelayHandler {
	if clk == nil {
		clk = clock.Real{}
	}
	cfg := alerting.DefaultConfig()
	cfg.Strategy = alerting.StrategyCooldown
	if cooldown > 0 {
		cfg.Cooldown = cooldown
	}
	return &RelayHandler{
		sender: sender,
		engine: alerting.NewEngine(cfg, clk),
		clock:  clk,
		log:    logger.WithComponent("relay"),
	}
}

type alertBody struct {
	WaterLevel *float64 `json:"waterLevel"`
	Status     string   `json:"status"`
	Timestamp  string   `json:"timestamp"`
}

// HandleAlert serves POST /api/alert.
func (h *RelayHandler) HandleAlert(w http.ResponseWriter, r *http.Request) {
	var body alertBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	if body.WaterLevel == nil || math.IsNaN(*body.WaterLevel) {
		writeError(w, http.StatusBadRequest, "Water level is required", nil)
		return
	}

	now := h.clock.Now()
	sev := models.SeverityForStatus(body.Status)
	req, err := h.engine.Consider(models.NewReading(*body.WaterLevel, now), sev)
	if err != nil {
		var rl *alerting.RateLimitedError
		if errors.As(err, &rl) {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		}
		h.log.Info().Str("severity", sev.String()).Str("reason", alerting.Reason(err)).Msg("alert suppressed")
		writeJSON(w, http.StatusTooManyRequests, models.AlertResponse{
			Message: "Alert sent recently. Please wait before sending another.",
		})
		return
	}

	timestamp := body.Timestamp
	if timestamp == "" {
		timestamp = now.Local().Format(notifier.TimeLayout)
	}

	if err := h.sender.SendAlert(r.Context(), sev, *body.WaterLevel, timestamp); err != nil {
		h.engine.MarkFailed(req)
		h.log.Error().Err(err).Str("severity", sev.String()).Msg("failed to send alert")
		writeJSON(w, http.StatusInternalServerError, models.AlertResponse{
			Message: "Failed to send alert",
			Error:   err.Error(),
		})
		return
	}

	sentAt := h.clock.Now()
	until := h.engine.MarkSent(req, sentAt)
	h.log.Info().
		Str("severity", sev.String()).
		Float64("value", *body.WaterLevel).
		Time("cooldown_until", until).
		Msg("alert relayed")

	writeJSON(w, http.StatusOK, models.AlertResponse{
		Success:       true,
		Message:       "Alert sent successfully",
		CooldownUntil: until.UTC().Format(isoMillis),
	})
}

// HandleTestTelegram serves GET /api/test-telegram.
func (h *RelayHandler) HandleTestTelegram(w http.ResponseWriter, r *http.Request) {
	if err := h.sender.SendText(r.Context(), notifier.FormatTest(h.clock.Now().Local())); err != nil {
		h.log.Error().Err(err).Msg("test message failed")
		writeJSON(w, http.StatusInternalServerError, models.AlertResponse{
			Message: "Failed to send test message",
			Error:   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, models.AlertResponse{Success: true, Message: "Test message sent successfully"})
}

type telegramHealth struct {
	Configured bool   `json:"configured"`
	Cooldown   string `json:"cooldown"`
}

func (h *RelayHandler) health() telegramHealth {
	return telegramHealth{
		Configured: h.sender.Configured(),
		Cooldown:   strconv.Itoa(int(h.engine.Config().Cooldown.Seconds())) + " seconds",
	}
}
