package port

import (
	"context"
	"errors"
	"sync"
)

type QueueStats struct {
	MessageCount  int
	ConsumerCount int
}

// MessageQueue is a durable, ack-based queue transport.
type MessageQueue interface {
	// Publish reports false when the broker refused the message; that is not an error.
	Publish(ctx context.Context, queue string, message any) (bool, error)
	Consume(ctx context.Context, queue string, handler DeliveryHandler) error
	IsConnected() bool
	Stats(ctx context.Context, queue string) (QueueStats, error)
}

type DeliveryHandler func(ctx context.Context, d *Delivery) error

var ErrAlreadySettled = errors.New("delivery already acknowledged")

// Delivery is one received message. Ack or Nack settles it, and only the first call reaches the broker.
type Delivery struct {
	Queue string
	Body  []byte

	mu      sync.Mutex
	settled bool
	ack     func() error
	nack    func(requeue bool) error
}

func NewDelivery(queue string, body []byte, ack func() error, nack func(requeue bool) error) *Delivery {
	return &Delivery{Queue: queue, Body: body, ack: ack, nack: nack}
}

func (d *Delivery) Ack() error {
	return d.settle(d.ack)
}

func (d *Delivery) Nack(requeue bool) error {
	return d.settle(func() error { return d.nack(requeue) })
}

func (d *Delivery) Settled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settled
}

func (d *Delivery) settle(fn func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settled {
		return ErrAlreadySettled
	}
	d.settled = true
	return fn()
}
