package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prateekshukla17/XenCRM-Backend/internal/broker"
	"github.com/prateekshukla17/XenCRM-Backend/internal/domain"
	"github.com/prateekshukla17/XenCRM-Backend/internal/logging"
	"github.com/prateekshukla17/XenCRM-Backend/internal/store"
	"github.com/prateekshukla17/XenCRM-Backend/internal/vendorsim"
)

var ErrNotRunning = errors.New("pipeline: not running")

type ProducerConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval" env:"PRODUCER_POLL_INTERVAL"`
	BatchSize     int           `yaml:"batch_size" env:"PRODUCER_BATCH_SIZE"`
	VendorTimeout time.Duration `yaml:"vendor_timeout" env:"PRODUCER_VENDOR_TIMEOUT"`
	DrainTimeout  time.Duration `yaml:"drain_timeout" env:"PRODUCER_DRAIN_TIMEOUT"`
}

func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		PollInterval:  5 * time.Second,
		BatchSize:     10,
		VendorTimeout: 5 * time.Second,
		DrainTimeout:  30 * time.Second,
	}
}

// Producer moves communications from PENDING through a vendor call to a
// published outcome on a fixed cadence. It is the only writer allowed to
// take an item out of PENDING.
type Producer struct {
	cfg     ProducerConfig
	comms   store.CommunicationStore
	vendor  Vendor
	channel broker.Channel
	now     func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewProducer(cfg ProducerConfig, comms store.CommunicationStore, vendor Vendor, channel broker.Channel) *Producer {
	def := DefaultProducerConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.VendorTimeout <= 0 {
		cfg.VendorTimeout = def.VendorTimeout
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = def.DrainTimeout
	}
	return &Producer{
		cfg:     cfg,
		comms:   comms,
		vendor:  vendor,
		channel: channel,
		now:     time.Now,
	}
}

func (p *Producer) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.run(loopCtx)

	slog.Info("delivery producer started",
		slog.String("code", "SYS_STARTUP"),
		slog.Duration("pollInterval", p.cfg.PollInterval),
		slog.Int("batchSize", p.cfg.BatchSize),
	)
	return nil
}

// Stop halts the poll loop, letting any in-progress batch finish, bounded by
// the drain timeout. Idempotent.
func (p *Producer) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	// Wait outside the lock so Running and TriggerNow stay responsive
	// while the batch drains.
	cancel()
	select {
	case <-done:
	case <-time.After(p.cfg.DrainTimeout):
		slog.Warn("producer drain timed out", slog.String("code", "SYS_SHUTDOWN"))
	}

	slog.Info("delivery producer stopped", slog.String("code", "SYS_SHUTDOWN"))
	return nil
}

func (p *Producer) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// TriggerNow runs one batch outside the timer cadence, for operational and
// testing use. It reports how many items were dispatched.
func (p *Producer) TriggerNow(ctx context.Context) (int, error) {
	if !p.Running() {
		return 0, ErrNotRunning
	}
	return p.processBatch(ctx)
}

func (p *Producer) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.processBatch(ctx); err != nil {
				slog.Error("producer batch failed",
					slog.String("code", "DB_ERROR"), slog.Any("error", err))
			}
		}
	}
}

// processBatch fetches due communications oldest-first and dispatches them
// concurrently. Failures local to one item never abort the batch.
func (p *Producer) processBatch(ctx context.Context) (int, error) {
	comms, err := p.comms.FindDue(ctx, p.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	var wg sync.WaitGroup
	for _, c := range comms {
		wg.Add(1)
		go func(c *domain.Communication) {
			defer wg.Done()
			p.processItem(ctx, c)
		}(c)
	}
	wg.Wait()
	return len(comms), nil
}

func (p *Producer) processItem(ctx context.Context, c *domain.Communication) {
	ctx = logging.WithCommunication(ctx, c.ID, c.CampaignID)
	l := logging.FromContext(ctx)

	// Claim before the vendor call: a crash mid-call leaves the item visibly
	// PROCESSING instead of falsely fresh PENDING.
	claimed, err := p.comms.MarkProcessing(ctx, c.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotPending) {
			return // someone else already took it
		}
		l.Error("failed to mark communication processing",
			slog.String("code", "DB_ERROR"), slog.Any("error", err))
		return
	}

	// The vendor call and publish must survive a producer stop: graceful
	// drain means the claimed item still gets its outcome published.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.VendorTimeout)
	defer cancel()

	payload := vendorsim.Payload{
		CommunicationID: claimed.ID,
		CampaignID:      claimed.CampaignID,
		CustomerID:      claimed.CustomerID,
		CustomerEmail:   claimed.CustomerEmail,
		CustomerName:    claimed.CustomerName,
		MessageText:     claimed.MessageText,
		AttemptNumber:   claimed.Attempts,
		MaxAttempts:     claimed.MaxAttempts,
		Timestamp:       p.now(),
	}

	outcome, err := p.vendor.Send(callCtx, payload)
	if err != nil {
		outcome = domain.ErrorOutcome(err, p.now())
		l.Error("vendor call failed",
			slog.String("code", "VENDOR_ERROR"), slog.Any("error", err))
	}

	msg := OutcomeMessage{
		CommunicationID:  claimed.ID,
		CampaignID:       claimed.CampaignID,
		CustomerID:       claimed.CustomerID,
		CustomerEmail:    claimed.CustomerEmail,
		AttemptNumber:    claimed.Attempts,
		DeliveryResponse: &outcome,
		ProcessedAt:      p.now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		l.Error("failed to marshal outcome message",
			slog.String("code", "SYS_ERROR"), slog.Any("error", err))
		return
	}

	if err := p.channel.Publish(callCtx, OutcomeSubject, claimed.ID, data); err != nil {
		// Accepted gap: the item stays PROCESSING until an operator sweep.
		l.Error("failed to publish outcome, communication left PROCESSING",
			slog.String("code", "BROKER_ERROR"), slog.Any("error", err))
		return
	}

	l.Info("outcome published",
		slog.String("code", "DEL_DISPATCHED"),
		slog.String("outcome", string(outcome.Kind)),
		slog.Int("attempt", claimed.Attempts),
	)
}
