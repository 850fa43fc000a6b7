package mqtt

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"water-monitor/internal/logger"
)

// Client manages a long-lived MQTT connection used for publishing alerts.
// Sensor subscriptions use Transport instead, whose lifecycle belongs to
// the supervisor.
type Client struct {
	client mqtt.Client
	config ClientConfig
	log    zerolog.Logger
}

// ClientConfig holds MQTT client configuration
type ClientConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

// NewClient connects to the broker with paho's auto reconnect enabled.
func NewClient(config ClientConfig) (*Client, error) {
	c := &Client{config: config, log: logger.WithComponent("mqtt-client")}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	if config.ConnectTimeout > 0 {
		opts.SetConnectTimeout(config.ConnectTimeout)
	}

	c.client = mqtt.NewClient(opts)

	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	c.log.Info().Str("broker", config.Broker).Msg("connected to broker")
	return c, nil
}

// GetNativeClient returns the underlying paho MQTT client
func (c *Client) GetNativeClient() mqtt.Client {
	return c.client
}

// IsConnected returns whether the client is currently connected
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Close closes the MQTT client connection
func (c *Client) Close() {
	c.client.Disconnect(250)
	c.log.Info().Msg("disconnected")
}

func (c *Client) onConnect(mqtt.Client) {
	c.log.Info().Msg("connection established")
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.log.Warn().Err(err).Msg("connection lost, paho will reconnect")
}
