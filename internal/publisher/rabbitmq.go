package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"content_ingester/internal/domain"
)

// RabbitMQ announces written content items on a topic exchange. Each event
// is routed as <routing key>.<source kind>, so consumers can bind to one
// kind (content.feed-rss) or all of them (content.#).
type RabbitMQ struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	prefix   string
	logger   *slog.Logger
}

type Config struct {
	URL      string
	Exchange string
	// RoutingKey is the prefix of every event's routing key.
	RoutingKey string
	// QueueName, when set, is declared durable and bound to all kinds.
	QueueName string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"binding", allKinds(cfg.RoutingKey),
	)

	return &RabbitMQ{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
		prefix:   cfg.RoutingKey,
		logger:   logger.With("component", "publisher"),
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if cfg.QueueName == "" {
		return nil
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.QueueName, err)
	}
	if err := ch.QueueBind(q.Name, allKinds(cfg.RoutingKey), cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", q.Name, err)
	}
	return nil
}

// routingKey is the per-event key for items of the given kind.
func routingKey(prefix string, kind domain.SourceKind) string {
	return prefix + "." + string(kind)
}

func allKinds(prefix string) string {
	return prefix + ".#"
}

const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

// ContentMessage announces a written content item to downstream consumers.
type ContentMessage struct {
	Action    string             `json:"action"`
	Item      domain.ContentItem `json:"item"`
	Timestamp time.Time          `json:"timestamp"`
}

func newContentMessage(item *domain.ContentItem, isNew bool, now time.Time) ContentMessage {
	action := ActionUpdate
	if isNew {
		action = ActionCreate
	}
	return ContentMessage{
		Action:    action,
		Item:      *item,
		Timestamp: now.UTC(),
	}
}

func (r *RabbitMQ) Publish(ctx context.Context, item *domain.ContentItem, isNew bool) error {
	msg := newContentMessage(item, isNew, time.Now())

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		routingKey(r.prefix, item.SourceKind),
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    item.NaturalKey,
			Type:         string(item.SourceKind),
			Body:         body,
			Timestamp:    msg.Timestamp,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published content",
		"natural_key", item.NaturalKey,
		"source_id", item.SourceID,
		"action", msg.Action,
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
