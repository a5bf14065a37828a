package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/prateekshukla17/XenCRM-Backend/internal/broker"
	"github.com/prateekshukla17/XenCRM-Backend/internal/retry"
)

const (
	StreamName     = "MESSAGING"
	StreamSubjects = "messaging.>"

	keyHeader          = "XenCRM-Key"
	maxConnectAttempts = 5
	fetchMaxWait       = 2 * time.Second
)

var ErrNotConnected = errors.New("nats: channel not connected")

// Channel is the JetStream-backed implementation of broker.Channel. One
// Channel owns one connection; Producer and Consumer share it.
type Channel struct {
	url string

	mu     sync.Mutex
	conn   *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
}

func New(url string) *Channel {
	return &Channel{url: url}
}

// EnsureConnected establishes the connection and stream if needed, retrying
// with jittered exponential backoff. Safe to call repeatedly.
func (c *Channel) EnsureConnected(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.conn.IsConnected() {
		return nil
	}

	backoff := retry.DefaultBackoff()
	var lastErr error
	for attempt := 0; attempt < maxConnectAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff.NextDelay(attempt - 1)):
			}
		}

		if err := c.connect(ctx); err != nil {
			lastErr = err
			slog.Warn("NATS connection attempt failed",
				slog.String("code", "BROKER_ERROR"),
				slog.Int("attempt", attempt+1),
				slog.Any("error", err),
			)
			continue
		}
		return nil
	}
	return fmt.Errorf("connect to NATS after %d attempts: %w", maxConnectAttempts, lastErr)
}

func (c *Channel) connect(ctx context.Context) error {
	conn, err := nats.Connect(c.url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{StreamSubjects},
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create stream: %w", err)
	}

	c.conn = conn
	c.js = js
	c.stream = stream
	return nil
}

func (c *Channel) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.conn.IsConnected()
}

func (c *Channel) Publish(ctx context.Context, subject, key string, data []byte) error {
	c.mu.Lock()
	js := c.js
	c.mu.Unlock()
	if js == nil {
		return ErrNotConnected
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set(keyHeader, key)

	if _, err := js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Consume creates a durable consumer on the subject and runs a fetch loop
// until the subscription is drained. Up to opts.Concurrency messages from
// each fetch are handled in parallel; nil handler results ack, errors
// terminate the message without redelivery.
func (c *Channel) Consume(ctx context.Context, subject string, h broker.Handler, opts broker.ConsumeOptions) (broker.Subscription, error) {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream == nil {
		return nil, ErrNotConnected
	}

	width := opts.Concurrency
	if width <= 0 {
		width = 1
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       durableName(subject),
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxAckPending: width,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &subscription{cancel: cancel, done: make(chan struct{})}
	go c.fetchLoop(loopCtx, cons, h, width, sub.done)
	return sub, nil
}

func (c *Channel) fetchLoop(ctx context.Context, cons jetstream.Consumer, h broker.Handler, width int, done chan<- struct{}) {
	defer close(done)

	// Drain cancels ctx to stop new fetches; in-flight handlers keep
	// running on a detached context so a half-finished reconciliation is
	// never misread as a poison message.
	handlerCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := cons.Fetch(width, jetstream.FetchMaxWait(fetchMaxWait))
		if err != nil {
			slog.Error("error fetching messages",
				slog.String("code", "BROKER_ERROR"), slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		var wg sync.WaitGroup
		for msg := range msgs.Messages() {
			wg.Add(1)
			go func(m jetstream.Msg) {
				defer wg.Done()
				if err := h(handlerCtx, m.Data()); err != nil {
					// Poison message: drop without redelivery.
					if termErr := m.Term(); termErr != nil {
						slog.Error("failed to terminate message",
							slog.String("code", "BROKER_ERROR"), slog.Any("error", termErr))
					}
					return
				}
				if ackErr := m.Ack(); ackErr != nil {
					slog.Error("failed to ack message",
						slog.String("code", "BROKER_ERROR"), slog.Any("error", ackErr))
				}
			}(msg)
		}
		wg.Wait()
	}
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.js = nil
		c.stream = nil
	}
	return nil
}

type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *subscription) Drain() error {
	s.cancel()
	<-s.done
	return nil
}

func durableName(subject string) string {
	return strings.ReplaceAll(strings.ReplaceAll(subject, ".", "-"), "*", "all")
}
