package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"water-monitor/internal/logger"
	"water-monitor/internal/models"
)

// Publisher publishes alert payloads to a topic. It satisfies
// notifier.Notifier.
type Publisher struct {
	client mqtt.Client
	log    zerolog.Logger

	// Topic pattern, e.g. "water/alerts/{status}"
	alertTopic string
	qos        byte
	retained   bool
}

// PublisherConfig holds configuration for MQTT publisher
type PublisherConfig struct {
	AlertTopic string
	QoS        byte
	Retained   bool
}

// NewPublisher creates a publisher on an already connected client.
func NewPublisher(client mqtt.Client, config PublisherConfig) *Publisher {
	return &Publisher{
		client:     client,
		log:        logger.WithComponent("mqtt-publisher"),
		alertTopic: config.AlertTopic,
		qos:        config.QoS,
		retained:   config.Retained,
	}
}

func (p *Publisher) Name() string { return "mqtt" }

// Send publishes req's payload and waits for the broker acknowledgement or
// ctx, whichever comes first.
func (p *Publisher) Send(ctx context.Context, req *models.AlertRequest) error {
	payload, err := json.Marshal(req.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	topic := formatTopic(p.alertTopic, req.Status())
	token := p.client.Publish(topic, p.qos, p.retained, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish alert to %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	p.log.Info().
		Str("topic", topic).
		Str("alert_id", req.ID.String()).
		Str("status", req.Status()).
		Msg("published alert")
	return nil
}

// formatTopic replaces the {status} placeholder with the alert status
func formatTopic(topicPattern, status string) string {
	return strings.ReplaceAll(topicPattern, "{status}", strings.ToLower(status))
}
