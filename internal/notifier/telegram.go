package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"water-monitor/internal/logger"
	"water-monitor/internal/models"
)

const DefaultTelegramAPI = "https://api.telegram.org"

// TelegramConfig holds bot credentials.
type TelegramConfig struct {
	Token   string
	ChatID  string
	APIBase string
	Timeout time.Duration
}

// Telegram sends alerts through the Bot API sendMessage method.
type Telegram struct {
	cfg    TelegramConfig
	client *http.Client
	log    zerolog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultTelegramAPI
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Telegram{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logger.WithComponent("telegram"),
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Configured reports whether both token and chat id are set.
func (t *Telegram) Configured() bool {
	return t.cfg.Token != "" && t.cfg.ChatID != ""
}

// Send formats req and delivers it.
func (t *Telegram) Send(ctx context.Context, req *models.AlertRequest) error {
	return t.SendAlert(ctx, req.Severity, req.Reading.Value, req.GeneratedAt.Local().Format(TimeLayout))
}

// SendAlert delivers an alert message with a caller supplied timestamp.
func (t *Telegram) SendAlert(ctx context.Context, sev models.Severity, level float64, timestamp string) error {
	return t.SendText(ctx, FormatAlert(sev, level, timestamp))
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendText posts an HTML message to the configured chat.
func (t *Telegram) SendText(ctx context.Context, text string) error {
	if !t.Configured() {
		return &NotifyError{Notifier: t.Name(), Err: ErrNotConfigured}
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: t.cfg.ChatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return &NotifyError{Notifier: t.Name(), Err: err}
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.cfg.APIBase, "/"), t.cfg.Token)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &NotifyError{Notifier: t.Name(), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		// the URL embeds the bot token; keep it out of logs
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return &NotifyError{Notifier: t.Name(), Err: err}
	}
	defer resp.Body.Close()

	var out apiResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode != http.StatusOK || !out.OK {
		msg := out.Description
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &NotifyError{Notifier: t.Name(), StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	t.log.Info().Msg("message delivered")
	return nil
}
