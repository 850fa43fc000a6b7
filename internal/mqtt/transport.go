package mqtt

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"water-monitor/internal/logger"
	"water-monitor/internal/models"
	"water-monitor/internal/supervisor"
)

// TransportConfig configures the sensor subscription. The supervisor's
// target is the broker address.
type TransportConfig struct {
	ClientID       string // prefix, a random suffix is added per attempt
	Username       string
	Password       string
	Topic          string // e.g. "sensor/+/water_level"
	QoS            byte
	ConnectTimeout time.Duration
}

// Transport is one MQTT session subscribed to the level topic. Paho's own
// reconnect logic is disabled so that retry policy stays with the supervisor.
type Transport struct {
	cfg TransportConfig
	log zerolog.Logger

	mu        sync.Mutex
	client    mqtt.Client
	closed    bool
	closeOnce sync.Once
}

// NewTransportFactory returns a factory producing one Transport per attempt.
func NewTransportFactory(cfg TransportConfig) supervisor.TransportFactory {
	return func() supervisor.Transport { return NewTransport(cfg) }
}

func NewTransport(cfg TransportConfig) *Transport {
	return &Transport{cfg: cfg, log: logger.WithComponent("mqtt-transport")}
}

// BrokerURL returns the broker URL for target.
func BrokerURL(target models.Target) string {
	return "tcp://" + target.Addr()
}

func (t *Transport) options(target models.Target, events supervisor.Events) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(BrokerURL(target))
	opts.SetClientID(fmt.Sprintf("%s-%s", t.cfg.ClientID, uuid.NewString()[:8]))
	opts.SetUsername(t.cfg.Username)
	opts.SetPassword(t.cfg.Password)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	if t.cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(t.cfg.ConnectTimeout)
	}

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if t.isClosed() {
			// closed while the connect was in flight
			c.Disconnect(0)
			return
		}
		events.OnOpen()

		token := c.Subscribe(t.cfg.Topic, t.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
			if t.isClosed() {
				return
			}
			events.OnMessage(msg.Payload())
		})
		if token.Wait() && token.Error() != nil && !t.isClosed() {
			events.OnError(fmt.Errorf("subscribe %s: %w", t.cfg.Topic, token.Error()))
			return
		}
		t.log.Info().Str("topic", t.cfg.Topic).Msg("subscribed")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if !t.isClosed() {
			events.OnError(err)
		}
	})
	return opts
}

// Open starts connecting in the background.
func (t *Transport) Open(target models.Target, events supervisor.Events) error {
	client := mqtt.NewClient(t.options(target, events))

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return supervisor.ErrTransportClosed
	}
	t.client = client
	t.mu.Unlock()

	t.log.Debug().Str("broker", BrokerURL(target)).Msg("connecting")
	token := client.Connect()
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil && !t.isClosed() {
			events.OnError(err)
		}
	}()
	return nil
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Close disconnects. It is idempotent.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		client := t.client
		t.mu.Unlock()

		if client != nil && client.IsConnectionOpen() {
			client.Disconnect(250)
		}
	})
	return nil
}
