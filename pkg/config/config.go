package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"water-monitor/internal/logger"
)

// Sensor transports.
const (
	TransportWebSocket = "websocket"
	TransportMQTT      = "mqtt"
)

// Notifier names accepted in NOTIFIERS.
const (
	NotifierTelegram = "telegram"
	NotifierRelay    = "relay"
	NotifierMQTT     = "mqtt"
)

// placeholders shipped in example .env files; treated as unset
const (
	tokenPlaceholder  = "YOUR_BOT_TOKEN_HERE"
	chatIDPlaceholder = "YOUR_CHAT_ID_HERE"
)

type Config struct {
	// Logging
	LogLevel string
	Env      string

	// HTTP server
	HTTPAddr string

	// Sensor connection
	Transport      string
	SensorTarget   string // host:port; the session starts on boot when set
	SensorPath     string
	ConnectTimeout time.Duration
	ReconnectDelay time.Duration
	ReadingBuffer  int

	// MQTT Configuration
	MQTTBroker     string
	MQTTClientID   string
	MQTTUsername   string
	MQTTPassword   string
	MQTTTopicLevel string
	MQTTTopicAlert string
	MQTTQoS        int

	// Classification
	WarningThreshold float64
	HazardThreshold  float64
	HistorySize      int

	// Alerting
	AlertsEnabled        bool
	AlertStrategy        string
	AlertCooldown        time.Duration
	AlertResetOnRecovery bool
	AlertSendTimeout     time.Duration
	Notifiers            []string

	// Alert relay
	RelayEnabled  bool
	RelayURL      string
	RelayCooldown time.Duration

	// Telegram
	TelegramBotToken string
	TelegramChatID   string
	TelegramAPIBase  string

	// ClickHouse alert audit log, disabled when ClickHouseAddr is empty
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Env:      getEnv("ENV", "production"),

		HTTPAddr: getEnv("HTTP_ADDR", ":"+getEnv("PORT", "3001")),

		Transport:      strings.ToLower(getEnv("SENSOR_TRANSPORT", TransportWebSocket)),
		SensorTarget:   getEnv("SENSOR_TARGET", ""),
		SensorPath:     getEnv("SENSOR_WS_PATH", "/"),
		ConnectTimeout: getEnvDuration("SENSOR_CONNECT_TIMEOUT", 15*time.Second),
		ReconnectDelay: getEnvDuration("SENSOR_RECONNECT_DELAY", 3*time.Second),
		ReadingBuffer:  getEnvInt("SENSOR_READING_BUFFER", 100),

		MQTTBroker:     getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID:   getEnv("MQTT_CLIENT_ID", "water-monitor"),
		MQTTUsername:   getEnv("MQTT_USERNAME", ""),
		MQTTPassword:   getEnv("MQTT_PASSWORD", ""),
		MQTTTopicLevel: getEnv("MQTT_TOPIC_LEVEL", "sensor/+/water_level"),
		MQTTTopicAlert: getEnv("MQTT_TOPIC_ALERT", "water/alerts/{status}"),
		MQTTQoS:        getEnvInt("MQTT_QOS", 1),

		WarningThreshold: getEnvFloat("WARNING_THRESHOLD", 70),
		HazardThreshold:  getEnvFloat("HAZARD_THRESHOLD", 80),
		HistorySize:      getEnvInt("HISTORY_SIZE", 100),

		AlertsEnabled:        getEnvBool("ALERTS_ENABLED", true),
		AlertStrategy:        getEnv("ALERT_STRATEGY", "combined"),
		AlertCooldown:        getEnvDuration("ALERT_COOLDOWN", 5*time.Minute),
		AlertResetOnRecovery: getEnvBool("ALERT_RESET_ON_RECOVERY", false),
		AlertSendTimeout:     getEnvDuration("ALERT_SEND_TIMEOUT", 15*time.Second),
		Notifiers:            getEnvList("NOTIFIERS", []string{NotifierTelegram}),

		RelayEnabled:  getEnvBool("RELAY_ENABLED", true),
		RelayURL:      getEnv("RELAY_URL", "http://localhost:3001/api/alert"),
		RelayCooldown: getEnvDuration("RELAY_COOLDOWN", 5*time.Minute),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		TelegramAPIBase:  getEnv("TELEGRAM_API_BASE", "https://api.telegram.org"),

		ClickHouseAddr: getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "water"),
		ClickHouseUser: getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePass: getEnv("CLICKHOUSE_PASS", ""),
	}

	if cfg.TelegramBotToken == tokenPlaceholder {
		cfg.TelegramBotToken = ""
	}
	if cfg.TelegramChatID == chatIDPlaceholder {
		cfg.TelegramChatID = ""
	}

	return cfg
}

// Validate checks the values Load cannot repair with a default.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportWebSocket, TransportMQTT:
	default:
		return fmt.Errorf("SENSOR_TRANSPORT must be %q or %q, got %q", TransportWebSocket, TransportMQTT, c.Transport)
	}
	for _, n := range c.Notifiers {
		switch n {
		case NotifierTelegram, NotifierRelay, NotifierMQTT:
		default:
			return fmt.Errorf("unknown notifier %q in NOTIFIERS", n)
		}
	}
	if c.MQTTQoS < 0 || c.MQTTQoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", c.MQTTQoS)
	}
	return nil
}

// HasNotifier reports whether name is listed in NOTIFIERS.
func (c *Config) HasNotifier(name string) bool {
	for _, n := range c.Notifiers {
		if n == name {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logger.Logger.Warn().Err(err).Str("key", key).Msg("failed to parse float, using default")
		return defaultValue
	}
	return floatValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		logger.Logger.Warn().Err(err).Str("key", key).Msg("failed to parse bool, using default")
		return defaultValue
	}
	return boolValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		logger.Logger.Warn().Err(err).Str("key", key).Msg("failed to parse int, using default")
		return defaultValue
	}
	return intValue
}

// getEnvDuration accepts Go durations ("90s", "5m") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		logger.Logger.Warn().Str("key", key).Str("value", value).Msg("failed to parse duration, using default")
		return defaultValue
	}
	return d
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
