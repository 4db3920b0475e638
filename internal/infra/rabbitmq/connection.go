package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
	"github.com/fiapx/fiapx-video-processor/pkg/clock"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("rabbitmq: not connected")

type Config struct {
	URL             string
	ConnectAttempts int
	RetryDelay      time.Duration
	Prefetch        int
}

// Transport is the durable queue transport over the processing, results and dead-letter queues.
type Transport struct {
	cfg    Config
	dial   func(url string) (connection, error)
	sleep  clock.SleepFunc
	logger *zap.Logger

	connectMu sync.Mutex
	mu        sync.RWMutex
	state     connState

	inflight sync.WaitGroup
}

type Option func(*Transport)

func WithSleep(sleep clock.SleepFunc) Option {
	return func(t *Transport) { t.sleep = sleep }
}

func withDialer(dial func(url string) (connection, error)) Option {
	return func(t *Transport) { t.dial = dial }
}

func NewTransport(cfg Config, logger *zap.Logger, opts ...Option) *Transport {
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = 5
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}

	t := &Transport{
		cfg:    cfg,
		dial:   dialAMQP,
		sleep:  clock.Sleep,
		logger: logger.With(zap.String("component", "rabbitmq")),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// connState is the live connection and publish channel. The zero value means disconnected.
type connState struct {
	conn connection
	ch   channel
}

func (s connState) connected() bool {
	return s.conn != nil && s.ch != nil && !s.conn.IsClosed()
}

// closed is the state after conn reported closure. Notifications from a replaced connection are ignored.
func (s connState) closed(conn connection) connState {
	if s.conn != conn {
		return s
	}
	return connState{}
}

// Connect dials the broker, retrying with a fixed delay, and declares the queues.
func (t *Transport) Connect(ctx context.Context) error {
	t.connectMu.Lock()
	defer t.connectMu.Unlock()

	if t.IsConnected() {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= t.cfg.ConnectAttempts; attempt++ {
		state, err := t.open()
		if err == nil {
			t.mu.Lock()
			t.state = state
			t.mu.Unlock()
			t.watch(state)
			t.logger.Info("connected to rabbitmq", zap.Int("attempt", attempt))
			return nil
		}

		lastErr = err
		t.logger.Warn("rabbitmq connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", t.cfg.ConnectAttempts),
			zap.Error(err),
		)
		if attempt == t.cfg.ConnectAttempts {
			break
		}
		if err := t.sleep(ctx, t.cfg.RetryDelay); err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
	}

	return fmt.Errorf("connect to rabbitmq after %d attempts: %w", t.cfg.ConnectAttempts, lastErr)
}

// EnsureConnection reconnects lazily. Every operation calls it first.
func (t *Transport) EnsureConnection(ctx context.Context) error {
	if t.IsConnected() {
		return nil
	}
	t.logger.Info("rabbitmq connection not available, reconnecting")
	return t.Connect(ctx)
}

func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.connected()
}

func (t *Transport) Close() error {
	t.mu.Lock()
	state := t.state
	t.state = connState{}
	t.mu.Unlock()

	if state.ch != nil {
		_ = state.ch.Close()
	}
	if state.conn != nil && !state.conn.IsClosed() {
		return state.conn.Close()
	}
	return nil
}

func (t *Transport) current() connState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Transport) open() (connState, error) {
	conn, err := t.dial(t.cfg.URL)
	if err != nil {
		return connState{}, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return connState{}, fmt.Errorf("open channel: %w", err)
	}

	if err := declareQueues(ch); err != nil {
		ch.Close()
		conn.Close()
		return connState{}, err
	}

	return connState{conn: conn, ch: ch}, nil
}

func declareQueues(ch channel) error {
	queues := []struct {
		name string
		args amqp.Table
	}{
		{entity.ProcessingQueue, amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": entity.DeadLetterQueue,
		}},
		{entity.ResultsQueue, nil},
		{entity.DeadLetterQueue, nil},
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

// watch drops the connection state as soon as the connection or its channel closes.
func (t *Transport) watch(state connState) {
	connClosed := state.conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := state.ch.NotifyClose(make(chan *amqp.Error, 1))

	go func() {
		var reason *amqp.Error
		select {
		case reason = <-connClosed:
		case reason = <-chClosed:
			_ = state.conn.Close()
		}

		if reason != nil {
			t.logger.Warn("rabbitmq connection lost", zap.String("reason", reason.Reason), zap.Int("code", reason.Code))
		} else {
			t.logger.Info("rabbitmq connection closed")
		}

		t.mu.Lock()
		t.state = t.state.closed(state.conn)
		t.mu.Unlock()
	}()
}

type connection interface {
	Channel() (channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	IsClosed() bool
	Close() error
}

type channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
	PublishConfirmed(ctx context.Context, queue string, msg amqp.Publishing) (bool, error)
}

type amqpConnection struct {
	*amqp.Connection
}

func dialAMQP(url string) (connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
}

func (c amqpConnection) Channel() (channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	return amqpChannel{ch}, nil
}

type amqpChannel struct {
	*amqp.Channel
}

func (c amqpChannel) PublishConfirmed(ctx context.Context, queue string, msg amqp.Publishing) (bool, error) {
	dc, err := c.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, msg)
	if err != nil {
		return false, err
	}
	return dc.WaitContext(ctx)
}
