package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/domain/port"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publish sends message as persistent JSON and reports whether the broker confirmed it.
func (t *Transport) Publish(ctx context.Context, queue string, message any) (bool, error) {
	body, err := json.Marshal(message)
	if err != nil {
		return false, fmt.Errorf("marshal message for %s: %w", queue, err)
	}

	if err := t.EnsureConnection(ctx); err != nil {
		return false, err
	}

	ch := t.current().ch
	if ch == nil {
		return false, ErrNotConnected
	}

	ok, err := ch.PublishConfirmed(ctx, queue, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("publish to %s: %w", queue, err)
	}
	if !ok {
		t.logger.Warn("broker rejected message", zap.String("queue", queue))
	}
	return ok, nil
}

// Stats inspects queue on a short-lived channel; a failed passive declare closes only that channel.
func (t *Transport) Stats(ctx context.Context, queue string) (port.QueueStats, error) {
	if err := t.EnsureConnection(ctx); err != nil {
		return port.QueueStats{}, err
	}

	conn := t.current().conn
	if conn == nil {
		return port.QueueStats{}, ErrNotConnected
	}

	ch, err := conn.Channel()
	if err != nil {
		return port.QueueStats{}, fmt.Errorf("open stats channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclarePassive(queue, true, false, false, false, nil)
	if err != nil {
		return port.QueueStats{}, fmt.Errorf("inspect queue %s: %w", queue, err)
	}

	return port.QueueStats{MessageCount: q.Messages, ConsumerCount: q.Consumers}, nil
}
