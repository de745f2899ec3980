package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rabbitmq/amqp091-go"

	"TrendCurator/internal/config"
	"TrendCurator/internal/domain"
	"TrendCurator/internal/metrics"
	"TrendCurator/internal/ports"
)

const eventName = "recommendations.generated"

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher emits a run-completed event to a topic exchange.
type Publisher struct {
	conn       *amqp091.Connection
	channel    channel
	exchange   string
	routingKey string
	now        func() time.Time
}

var _ ports.Notifier = (*Publisher)(nil)

// RunEvent is the message body consumers receive.
type RunEvent struct {
	Event           string                          `json:"event"`
	RunID           string                          `json:"run_id"`
	GeneratedAt     time.Time                       `json:"generated_at"`
	Count           int                             `json:"count"`
	Categories      map[domain.Category]int         `json:"categories"`
	Recommendations []domain.EnrichedRecommendation `json:"recommendations"`
}

// NewPublisher dials the broker and declares the exchange.
func NewPublisher(cfg config.AMQPConfig) (*Publisher, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	p := newPublisher(ch, cfg.Exchange, cfg.RoutingKey)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange, routingKey string) *Publisher {
	if routingKey == "" {
		routingKey = eventName
	}
	return &Publisher{channel: ch, exchange: exchange, routingKey: routingKey, now: time.Now}
}

func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// PublishDigest sends one persistent JSON message per run.
func (p *Publisher) PublishDigest(ctx context.Context, runID string, recs []domain.EnrichedRecommendation) (err error) {
	started := time.Now()
	defer func() { metrics.RecordProviderCall("amqp", err, time.Since(started)) }()

	ev := RunEvent{
		Event:           eventName,
		RunID:           runID,
		GeneratedAt:     p.now().UTC(),
		Count:           len(recs),
		Categories:      make(map[domain.Category]int),
		Recommendations: recs,
	}
	for _, r := range recs {
		ev.Categories[r.Category]++
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		MessageId:    runID,
		Timestamp:    ev.GeneratedAt,
		Type:         eventName,
		Body:         body,
		DeliveryMode: amqp091.Persistent,
	})
	if err != nil {
		return fmt.Errorf("publish run event: %w", err)
	}
	return nil
}
