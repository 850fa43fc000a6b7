package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTPAddr != ":3001" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.Transport != TransportWebSocket {
		t.Errorf("Transport = %q", cfg.Transport)
	}
	if cfg.ConnectTimeout != 15*time.Second || cfg.ReconnectDelay != 3*time.Second {
		t.Errorf("timeouts = %v / %v", cfg.ConnectTimeout, cfg.ReconnectDelay)
	}
	if cfg.WarningThreshold != 70 || cfg.HazardThreshold != 80 {
		t.Errorf("thresholds = %v / %v", cfg.WarningThreshold, cfg.HazardThreshold)
	}
	if cfg.AlertCooldown != 5*time.Minute || !cfg.AlertsEnabled {
		t.Errorf("alerting = %v, enabled %v", cfg.AlertCooldown, cfg.AlertsEnabled)
	}
	if !cfg.HasNotifier(NotifierTelegram) || cfg.HasNotifier(NotifierMQTT) {
		t.Errorf("Notifiers = %v", cfg.Notifiers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("SENSOR_TRANSPORT", "MQTT")
	t.Setenv("SENSOR_TARGET", "192.168.1.100:1883")
	t.Setenv("HAZARD_THRESHOLD", "85.5")
	t.Setenv("ALERT_COOLDOWN", "90")
	t.Setenv("SENSOR_CONNECT_TIMEOUT", "5s")
	t.Setenv("NOTIFIERS", " Telegram, mqtt ,")
	t.Setenv("TELEGRAM_BOT_TOKEN", "YOUR_BOT_TOKEN_HERE")

	cfg := Load()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.Transport != TransportMQTT || cfg.SensorTarget != "192.168.1.100:1883" {
		t.Errorf("transport = %q, target = %q", cfg.Transport, cfg.SensorTarget)
	}
	if cfg.HazardThreshold != 85.5 {
		t.Errorf("HazardThreshold = %v", cfg.HazardThreshold)
	}
	if cfg.AlertCooldown != 90*time.Second || cfg.ConnectTimeout != 5*time.Second {
		t.Errorf("durations = %v / %v", cfg.AlertCooldown, cfg.ConnectTimeout)
	}
	if len(cfg.Notifiers) != 2 || !cfg.HasNotifier(NotifierMQTT) {
		t.Errorf("Notifiers = %v", cfg.Notifiers)
	}
	if cfg.TelegramBotToken != "" {
		t.Errorf("placeholder token kept: %q", cfg.TelegramBotToken)
	}
}

func TestBadValuesFallBack(t *testing.T) {
	t.Setenv("WARNING_THRESHOLD", "high")
	t.Setenv("ALERTS_ENABLED", "maybe")
	t.Setenv("HISTORY_SIZE", "lots")
	t.Setenv("ALERT_COOLDOWN", "soon")

	cfg := Load()

	if cfg.WarningThreshold != 70 || !cfg.AlertsEnabled || cfg.HistorySize != 100 || cfg.AlertCooldown != 5*time.Minute {
		t.Errorf("fallbacks not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"transport", func(c *Config) { c.Transport = "serial" }},
		{"notifier", func(c *Config) { c.Notifiers = []string{"sms"} }},
		{"qos", func(c *Config) { c.MQTTQoS = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil")
			}
		})
	}
}
