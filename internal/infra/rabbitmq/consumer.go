package rabbitmq

import (
	"context"
	"fmt"

	"github.com/fiapx/fiapx-video-processor/internal/domain/port"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consume subscribes with manual ack and the configured prefetch, then dispatches deliveries
// one at a time until ctx is done. A dropped subscription is re-established in the background.
// Cancelling ctx stops intake only: a delivery already handed to handler runs to completion
// under a context that is never cancelled. Wait blocks until dispatch has drained.
func (t *Transport) Consume(ctx context.Context, queue string, handler port.DeliveryHandler) error {
	ch, deliveries, err := t.subscribe(ctx, queue)
	if err != nil {
		return err
	}

	t.logger.Info("consuming", zap.String("queue", queue), zap.Int("prefetch", t.cfg.Prefetch))
	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		t.dispatch(ctx, queue, ch, deliveries, handler)
	}()
	return nil
}

// Wait blocks until every consumer started by Consume has stopped and its last delivery is settled.
func (t *Transport) Wait() {
	t.inflight.Wait()
}

func (t *Transport) subscribe(ctx context.Context, queue string) (channel, <-chan amqp.Delivery, error) {
	if err := t.EnsureConnection(ctx); err != nil {
		return nil, nil, err
	}

	conn := t.current().conn
	if conn == nil {
		return nil, nil, ErrNotConnected
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open consumer channel: %w", err)
	}

	if err := ch.Qos(t.cfg.Prefetch, 0, false); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("consume %s: %w", queue, err)
	}

	return ch, deliveries, nil
}

func (t *Transport) dispatch(ctx context.Context, queue string, ch channel, deliveries <-chan amqp.Delivery, handler port.DeliveryHandler) {
	for {
		for d := range deliveries {
			t.handle(context.WithoutCancel(ctx), queue, d, handler)
		}
		_ = ch.Close()

		if ctx.Err() != nil {
			t.logger.Info("consumer stopped", zap.String("queue", queue))
			return
		}

		t.logger.Warn("subscription closed, resubscribing", zap.String("queue", queue))
		for {
			if err := t.sleep(ctx, t.cfg.RetryDelay); err != nil {
				return
			}

			var err error
			ch, deliveries, err = t.subscribe(ctx, queue)
			if err == nil {
				t.logger.Info("resubscribed", zap.String("queue", queue))
				break
			}
			t.logger.Warn("resubscribe failed", zap.String("queue", queue), zap.Error(err))
		}
	}
}

func (t *Transport) handle(ctx context.Context, queue string, d amqp.Delivery, handler port.DeliveryHandler) {
	log := t.logger.With(zap.String("queue", queue), zap.Uint64("delivery_tag", d.DeliveryTag))

	delivery := port.NewDelivery(queue, d.Body,
		func() error { return d.Ack(false) },
		func(requeue bool) error { return d.Nack(false, requeue) },
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("message handler panicked, dead-lettering", zap.Any("panic", r))
			_ = delivery.Nack(false)
		}
	}()

	if err := handler(ctx, delivery); err != nil {
		log.Warn("message handler returned error", zap.Error(err))
	}

	if !delivery.Settled() {
		log.Warn("message left unsettled by handler, requeueing")
		if err := delivery.Nack(true); err != nil {
			log.Error("nack failed", zap.Error(err))
		}
	}
}
