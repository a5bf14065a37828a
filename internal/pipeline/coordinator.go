package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prateekshukla17/XenCRM-Backend/internal/broker"
)

// Health is an advisory snapshot of the pipeline; it drives no automatic
// restarts.
type Health struct {
	Running         bool `json:"running"`
	Connected       bool `json:"connected"`
	ProducerRunning bool `json:"producer_running"`
	ConsumerRunning bool `json:"consumer_running"`
}

// Coordinator starts and stops the producer and consumer together against
// one broker channel.
type Coordinator struct {
	channel  broker.Channel
	producer *Producer
	consumer *Consumer

	mu      sync.Mutex
	running bool
}

func NewCoordinator(channel broker.Channel, producer *Producer, consumer *Consumer) *Coordinator {
	return &Coordinator{
		channel:  channel,
		producer: producer,
		consumer: consumer,
	}
}

// Start establishes the broker connection, then brings up the consumer and
// producer. A partial start is rolled back before the error surfaces;
// connection failure is fatal to the whole pipeline.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	if err := c.channel.EnsureConnected(ctx); err != nil {
		return fmt.Errorf("broker connection: %w", err)
	}

	if err := c.consumer.Start(ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	if err := c.producer.Start(ctx); err != nil {
		if stopErr := c.consumer.Stop(); stopErr != nil {
			slog.Error("failed to stop consumer after partial start",
				slog.String("code", "SYS_STARTUP"), slog.Any("error", stopErr))
		}
		return fmt.Errorf("start producer: %w", err)
	}

	c.running = true
	slog.Info("messaging pipeline started", slog.String("code", "SYS_STARTUP"))
	return nil
}

// Stop halts producer and consumer concurrently, then releases the broker
// connection. Idempotent.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := c.producer.Stop(); err != nil {
			slog.Error("producer stop failed",
				slog.String("code", "SYS_SHUTDOWN"), slog.Any("error", err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := c.consumer.Stop(); err != nil {
			slog.Error("consumer stop failed",
				slog.String("code", "SYS_SHUTDOWN"), slog.Any("error", err))
		}
	}()
	wg.Wait()

	if err := c.channel.Close(); err != nil {
		slog.Warn("broker close failed",
			slog.String("code", "BROKER_ERROR"), slog.Any("error", err))
	}

	c.running = false
	slog.Info("messaging pipeline stopped", slog.String("code", "SYS_SHUTDOWN"))
	return nil
}

func (c *Coordinator) Health() Health {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()

	return Health{
		Running:         running,
		Connected:       c.channel.IsActive(),
		ProducerRunning: c.producer.Running(),
		ConsumerRunning: c.consumer.Running(),
	}
}

// TriggerNow forwards to the producer's manual batch trigger.
func (c *Coordinator) TriggerNow(ctx context.Context) (int, error) {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if !running {
		return 0, ErrNotRunning
	}
	return c.producer.TriggerNow(ctx)
}

// Stats exposes the consumer's rolling receipt statistics.
func (c *Coordinator) Stats(ctx context.Context) (map[string]int64, error) {
	return c.consumer.Stats(ctx)
}
