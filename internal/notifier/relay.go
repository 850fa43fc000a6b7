package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"water-monitor/internal/alerting"
	"water-monitor/internal/logger"
	"water-monitor/internal/models"
)

// Relay posts alerts to an alert relay's /api/alert endpoint.
type Relay struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

func NewRelay(url string, timeout time.Duration) *Relay {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Relay{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    logger.WithComponent("relay-client"),
	}
}

func (r *Relay) Name() string { return "relay" }

// Send posts the payload. A 429 from the relay is returned as a
// *alerting.RateLimitedError.
func (r *Relay) Send(ctx context.Context, req *models.AlertRequest) error {
	body, err := json.Marshal(req.Payload())
	if err != nil {
		return &NotifyError{Notifier: r.Name(), Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return &NotifyError{Notifier: r.Name(), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return &NotifyError{Notifier: r.Name(), Err: err}
	}
	defer resp.Body.Close()

	var out models.AlertResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &out)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		r.log.Info().Str("message", out.Message).Msg("relay is cooling down")
		return &alerting.RateLimitedError{
			Severity:   req.Severity,
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= 300 || !out.Success:
		msg := out.Error
		if msg == "" {
			msg = out.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &NotifyError{Notifier: r.Name(), StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	r.log.Info().Str("alert_id", req.ID.String()).Str("cooldown_until", out.CooldownUntil).Msg("relay accepted alert")
	return nil
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
