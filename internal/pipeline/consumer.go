package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prateekshukla17/XenCRM-Backend/internal/broker"
	"github.com/prateekshukla17/XenCRM-Backend/internal/domain"
	"github.com/prateekshukla17/XenCRM-Backend/internal/events"
	"github.com/prateekshukla17/XenCRM-Backend/internal/logging"
	"github.com/prateekshukla17/XenCRM-Backend/internal/store"
)

type ConsumerConfig struct {
	Prefetch    int           `yaml:"prefetch" env:"CONSUMER_PREFETCH"`
	StatsWindow time.Duration `yaml:"stats_window" env:"CONSUMER_STATS_WINDOW"`
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Prefetch:    10,
		StatsWindow: 24 * time.Hour,
	}
}

// Consumer is the authoritative reconciler: the only component permitted to
// move a communication out of PROCESSING. Handler logic is safe to run twice
// for the same outcome; redelivered outcomes for already-terminal items are
// acknowledged without mutation.
type Consumer struct {
	cfg      ConsumerConfig
	comms    store.CommunicationStore
	receipts store.ReceiptStore
	counters store.CounterStore
	channel  broker.Channel
	hub      *events.Hub
	now      func() time.Time

	mu      sync.Mutex
	running bool
	sub     broker.Subscription
}

func NewConsumer(
	cfg ConsumerConfig,
	comms store.CommunicationStore,
	receipts store.ReceiptStore,
	counters store.CounterStore,
	channel broker.Channel,
	hub *events.Hub,
) *Consumer {
	def := DefaultConsumerConfig()
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = def.Prefetch
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = def.StatsWindow
	}
	return &Consumer{
		cfg:      cfg,
		comms:    comms,
		receipts: receipts,
		counters: counters,
		channel:  channel,
		hub:      hub,
		now:      time.Now,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	sub, err := c.channel.Consume(ctx, OutcomeSubject, c.Handle, broker.ConsumeOptions{
		Concurrency: c.cfg.Prefetch,
	})
	if err != nil {
		return fmt.Errorf("subscribe to outcomes: %w", err)
	}
	c.sub = sub
	c.running = true

	slog.Info("response consumer started",
		slog.String("code", "SYS_STARTUP"),
		slog.Int("prefetch", c.cfg.Prefetch),
	)
	return nil
}

func (c *Consumer) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	sub := c.sub
	c.sub = nil
	c.running = false
	c.mu.Unlock()

	// Drain waits for in-flight handlers; Running stays responsive
	// meanwhile.
	if err := sub.Drain(); err != nil {
		slog.Warn("consumer drain failed",
			slog.String("code", "BROKER_ERROR"), slog.Any("error", err))
	}

	slog.Info("response consumer stopped", slog.String("code", "SYS_SHUTDOWN"))
	return nil
}

func (c *Consumer) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Stats returns receipt counts by outcome status over the rolling window.
func (c *Consumer) Stats(ctx context.Context) (map[string]int64, error) {
	return c.receipts.RollingStats(ctx, c.now().Add(-c.cfg.StatsWindow))
}

// Handle reconciles one outcome message. A nil return acknowledges; any
// error terminates the message without redelivery, so a poison message can
// never loop.
func (c *Consumer) Handle(ctx context.Context, data []byte) error {
	var msg OutcomeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Error("malformed outcome message",
			slog.String("code", "MSG_MALFORMED"), slog.Any("error", err))
		return fmt.Errorf("unmarshal outcome message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		slog.Error("invalid outcome message",
			slog.String("code", "MSG_MALFORMED"), slog.Any("error", err))
		return err
	}

	ctx = logging.WithCommunication(ctx, msg.CommunicationID, msg.CampaignID)
	l := logging.FromContext(ctx)

	comm, err := c.comms.GetByID(ctx, msg.CommunicationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Error("outcome references unknown communication",
				slog.String("code", "MSG_MALFORMED"))
			return err
		}
		l.Error("failed to load communication",
			slog.String("code", "DB_ERROR"), slog.Any("error", err))
		return err
	}

	// Terminal states are immutable; a redelivered outcome is acknowledged
	// as already applied.
	if comm.Terminal() {
		l.Info("outcome for terminal communication ignored",
			slog.String("code", "MSG_DUPLICATE"),
			slog.String("status", string(comm.Status)))
		return nil
	}

	resp := msg.DeliveryResponse
	upd, event := c.reconcile(comm, resp)

	updated, err := c.comms.ApplyOutcome(ctx, comm.ID, upd)
	if err != nil {
		if errors.Is(err, store.ErrNotProcessing) {
			// Raced with another delivery of the same outcome.
			l.Info("communication already reconciled",
				slog.String("code", "MSG_DUPLICATE"))
			return nil
		}
		l.Error("failed to apply outcome",
			slog.String("code", "DB_ERROR"), slog.Any("error", err))
		return err
	}

	if err := c.appendReceipt(ctx, &msg); err != nil {
		return err
	}

	// Counters are advisory: failures log and move on, never blocking the
	// communication/receipt updates already made.
	if delta := deltaFor(updated.Status); !delta.Zero() {
		if err := c.counters.Apply(ctx, msg.CampaignID, delta); err != nil {
			l.Warn("failed to update campaign counters",
				slog.String("code", "DB_ERROR"), slog.Any("error", err))
		}
	}

	if c.hub != nil {
		event.CommunicationID = comm.ID
		event.CampaignID = comm.CampaignID
		event.CustomerID = comm.CustomerID
		event.Attempt = msg.AttemptNumber
		event.Timestamp = c.now()
		c.hub.Publish(event)
	}

	l.Info("outcome reconciled",
		slog.String("code", "DEL_RECONCILED"),
		slog.String("status", string(updated.Status)),
		slog.Int("attempt", msg.AttemptNumber),
	)
	return nil
}

// reconcile computes the next communication state from the outcome and the
// current attempt budget.
func (c *Consumer) reconcile(comm *domain.Communication, resp *domain.Outcome) (store.OutcomeUpdate, events.DeliveryEvent) {
	if resp.Kind == domain.OutcomeSuccess {
		deliveredAt := resp.DeliveredAt
		if deliveredAt == nil {
			now := c.now()
			deliveredAt = &now
		}
		return store.OutcomeUpdate{
				Status:      domain.CommunicationStatusDelivered,
				VendorRef:   resp.VendorRef,
				DeliveredAt: deliveredAt,
			}, events.DeliveryEvent{
				Status:    events.EventStatusDelivered,
				VendorRef: resp.VendorRef,
			}
	}

	lastError := fmt.Sprintf("%s: %s", resp.ErrorCode, resp.ErrorMessage)
	if resp.Retryable && !comm.AttemptsExhausted() {
		return store.OutcomeUpdate{
				Status:    domain.CommunicationStatusPending,
				LastError: lastError,
			}, events.DeliveryEvent{
				Status:    events.EventStatusRetrying,
				ErrorCode: string(resp.ErrorCode),
				Message:   resp.ErrorMessage,
			}
	}
	return store.OutcomeUpdate{
			Status:    domain.CommunicationStatusFailed,
			LastError: lastError,
		}, events.DeliveryEvent{
			Status:    events.EventStatusFailed,
			ErrorCode: string(resp.ErrorCode),
			Message:   resp.ErrorMessage,
		}
}

// appendReceipt records the attempt. Duplicates (redelivery between the
// status update and the ack) downgrade to a log line.
func (c *Consumer) appendReceipt(ctx context.Context, msg *OutcomeMessage) error {
	l := logging.FromContext(ctx)
	resp := msg.DeliveryResponse

	receipt := &domain.Receipt{
		ID:              uuid.New().String(),
		CommunicationID: msg.CommunicationID,
		CampaignID:      msg.CampaignID,
		AttemptNumber:   msg.AttemptNumber,
		Status:          resp.Kind,
		VendorRef:       resp.VendorRef,
		ErrorCode:       resp.ErrorCode,
		ErrorMessage:    resp.ErrorMessage,
		Cost:            resp.Cost,
		ReceivedAt:      c.now(),
	}
	if err := c.receipts.Create(ctx, receipt); err != nil {
		if errors.Is(err, store.ErrDuplicateReceipt) {
			l.Info("duplicate receipt skipped", slog.String("code", "MSG_DUPLICATE"))
			return nil
		}
		l.Error("failed to insert receipt",
			slog.String("code", "DB_ERROR"), slog.Any("error", err))
		return err
	}
	return nil
}

func deltaFor(status domain.CommunicationStatus) domain.CounterDelta {
	switch status {
	case domain.CommunicationStatusDelivered:
		return domain.DeltaForDelivered()
	case domain.CommunicationStatusFailed:
		return domain.DeltaForFailed()
	default:
		// Back to PENDING for retry: the item never left the pending pool.
		return domain.CounterDelta{}
	}
}
