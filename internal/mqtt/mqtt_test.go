package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"water-monitor/internal/models"
	"water-monitor/internal/supervisor"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error, complete bool) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }

func (t *fakeToken) Done() <-chan struct{} { return t.done }

func (t *fakeToken) Error() error { return t.err }

// fakeClient records publishes; other methods are inherited from the nil
// interface and must not be called.
type fakeClient struct {
	mqtt.Client
	topic     string
	payload   []byte
	token     *fakeToken
	connected bool
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.topic = topic
	c.payload = payload.([]byte)
	return c.token
}

func alertRequest(sev models.Severity, value float64) *models.AlertRequest {
	return models.NewAlertRequest(sev, models.NewReading(value, time.Now()), time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
}

func TestPublisherSend(t *testing.T) {
	client := &fakeClient{token: newFakeToken(nil, true)}
	p := NewPublisher(client, PublisherConfig{AlertTopic: "water/alerts/{status}", QoS: 1})

	if err := p.Send(context.Background(), alertRequest(models.SeverityHazard, 85)); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if client.topic != "water/alerts/flood_hazard" {
		t.Errorf("topic = %q", client.topic)
	}

	var payload models.AlertPayload
	if err := json.Unmarshal(client.payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.WaterLevel != 85 || payload.Status != models.AlertStatusHazard || payload.Timestamp != "2024-05-01T12:00:00Z" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestPublisherSendError(t *testing.T) {
	client := &fakeClient{token: newFakeToken(errors.New("not connected"), true)}
	p := NewPublisher(client, PublisherConfig{AlertTopic: "alerts"})

	if err := p.Send(context.Background(), alertRequest(models.SeverityWarning, 72)); err == nil {
		t.Fatal("expected error")
	}
}

func TestPublisherSendRespectsContext(t *testing.T) {
	client := &fakeClient{token: newFakeToken(nil, false)}
	p := NewPublisher(client, PublisherConfig{AlertTopic: "alerts"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Send(ctx, alertRequest(models.SeverityWarning, 72))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestTransportOptions(t *testing.T) {
	tr := NewTransport(TransportConfig{ClientID: "water-monitor", Topic: "sensor/+/level", ConnectTimeout: 5 * time.Second})
	target := models.Target{Host: "10.0.0.5", Port: 1883}

	opts := tr.options(target, supervisor.Events{})

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://10.0.0.5:1883" {
		t.Errorf("servers = %v", opts.Servers)
	}
	if opts.AutoReconnect {
		t.Error("paho auto reconnect must be off")
	}
	if !strings.HasPrefix(opts.ClientID, "water-monitor-") {
		t.Errorf("client id = %q", opts.ClientID)
	}
	if opts.ConnectTimeout != 5*time.Second {
		t.Errorf("connect timeout = %v", opts.ConnectTimeout)
	}
}

func TestTransportCloseBeforeOpen(t *testing.T) {
	tr := NewTransport(TransportConfig{Topic: "x"})
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	err := tr.Open(models.Target{Host: "10.0.0.5", Port: 1883}, supervisor.Events{})
	if !errors.Is(err, supervisor.ErrTransportClosed) {
		t.Errorf("Open after Close: err = %v", err)
	}
}

func TestClientIsConnected(t *testing.T) {
	fc := &fakeClient{}
	c := &Client{client: fc}
	if c.IsConnected() {
		t.Error("IsConnected() = true before connect")
	}
	fc.connected = true
	if !c.IsConnected() {
		t.Error("IsConnected() = false after connect")
	}
}

func TestFormatTopic(t *testing.T) {
	if got := formatTopic("water/{status}/alert", models.AlertStatusWarning); got != "water/warning/alert" {
		t.Errorf("formatTopic() = %q", got)
	}
	if got := formatTopic("water/alerts", models.AlertStatusWarning); got != "water/alerts" {
		t.Errorf("formatTopic() without placeholder = %q", got)
	}
}
