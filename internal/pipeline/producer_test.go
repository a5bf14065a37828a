package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prateekshukla17/XenCRM-Backend/internal/domain"
	"github.com/prateekshukla17/XenCRM-Backend/internal/vendorsim"
)

// quietProducerConfig keeps the ticker out of the way so tests drive batches
// via TriggerNow.
func quietProducerConfig() ProducerConfig {
	cfg := DefaultProducerConfig()
	cfg.PollInterval = time.Hour
	return cfg
}

func startedProducer(t *testing.T, comms *memCommStore, vendor Vendor, ch *memChannel) *Producer {
	t.Helper()
	p := NewProducer(quietProducerConfig(), comms, vendor, ch)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start producer: %v", err)
	}
	t.Cleanup(func() { _ = p.Stop() })
	return p
}

func TestProducerDispatchesOneCallOneOutcome(t *testing.T) {
	comms := newMemCommStore()
	comms.put(pendingComm("comm-1", "camp-1", 0, 3, time.Now()))
	vendor := &stubVendor{outcomes: []domain.Outcome{
		domain.SuccessOutcome("vnd_1", 1, time.Now()),
	}}
	ch := newMemChannel()

	p := startedProducer(t, comms, vendor, ch)
	n, err := p.TriggerNow(context.Background())
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if n != 1 {
		t.Errorf("dispatched %d items, want 1", n)
	}

	if got := vendor.callCount(); got != 1 {
		t.Errorf("vendor called %d times, want 1", got)
	}

	c := comms.get("comm-1")
	if c.Status != domain.CommunicationStatusProcessing {
		t.Errorf("status = %s, want PROCESSING", c.Status)
	}
	if c.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", c.Attempts)
	}
	if c.LastAttemptAt == nil {
		t.Error("last_attempt_at not stamped")
	}

	sent := ch.sent()
	if len(sent) != 1 {
		t.Fatalf("published %d messages, want 1", len(sent))
	}
	if sent[0].subject != OutcomeSubject {
		t.Errorf("subject = %s, want %s", sent[0].subject, OutcomeSubject)
	}
	if sent[0].key != "comm-1" {
		t.Errorf("key = %s, want comm-1", sent[0].key)
	}

	var msg OutcomeMessage
	if err := json.Unmarshal(sent[0].data, &msg); err != nil {
		t.Fatalf("unmarshal outcome message: %v", err)
	}
	if msg.CommunicationID != "comm-1" || msg.CampaignID != "camp-1" {
		t.Errorf("message ids = %s/%s, want comm-1/camp-1", msg.CommunicationID, msg.CampaignID)
	}
	if msg.AttemptNumber != 1 {
		t.Errorf("attempt number = %d, want 1", msg.AttemptNumber)
	}
	if msg.DeliveryResponse == nil || msg.DeliveryResponse.Kind != domain.OutcomeSuccess {
		t.Error("message missing SUCCESS delivery response")
	}
}

func TestProducerFetchesOldestFirst(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	comms := newMemCommStore()
	comms.put(pendingComm("comm-new", "camp-1", 0, 3, base.Add(2*time.Minute)))
	comms.put(pendingComm("comm-old", "camp-1", 0, 3, base))
	comms.put(pendingComm("comm-mid", "camp-1", 0, 3, base.Add(time.Minute)))

	cfg := quietProducerConfig()
	cfg.BatchSize = 2
	p := NewProducer(cfg, comms, &stubVendor{}, newMemChannel())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start producer: %v", err)
	}
	defer p.Stop()

	if _, err := p.TriggerNow(context.Background()); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	if got := comms.get("comm-old").Status; got != domain.CommunicationStatusProcessing {
		t.Errorf("oldest item status = %s, want PROCESSING", got)
	}
	if got := comms.get("comm-mid").Status; got != domain.CommunicationStatusProcessing {
		t.Errorf("middle item status = %s, want PROCESSING", got)
	}
	if got := comms.get("comm-new").Status; got != domain.CommunicationStatusPending {
		t.Errorf("newest item status = %s, want PENDING (outside batch)", got)
	}
}

func TestProducerSkipsExhaustedItems(t *testing.T) {
	comms := newMemCommStore()
	comms.put(pendingComm("comm-spent", "camp-1", 3, 3, time.Now()))
	vendor := &stubVendor{}

	p := startedProducer(t, comms, vendor, newMemChannel())
	if _, err := p.TriggerNow(context.Background()); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	if got := vendor.callCount(); got != 0 {
		t.Errorf("vendor called %d times for an exhausted item, want 0", got)
	}
}

func TestProducerWrapsVendorErrorAsSystemError(t *testing.T) {
	comms := newMemCommStore()
	comms.put(pendingComm("comm-1", "camp-1", 0, 3, time.Now()))
	vendor := &stubVendor{errs: []error{errors.New("connection reset")}}
	ch := newMemChannel()

	p := startedProducer(t, comms, vendor, ch)
	if _, err := p.TriggerNow(context.Background()); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	sent := ch.sent()
	if len(sent) != 1 {
		t.Fatalf("published %d messages, want 1", len(sent))
	}
	var msg OutcomeMessage
	if err := json.Unmarshal(sent[0].data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	resp := msg.DeliveryResponse
	if resp.Kind != domain.OutcomeError {
		t.Errorf("kind = %s, want ERROR", resp.Kind)
	}
	if resp.ErrorCode != domain.FailureSystemError {
		t.Errorf("code = %s, want SYSTEM_ERROR", resp.ErrorCode)
	}
	if !resp.Retryable {
		t.Error("system error outcome must be retryable")
	}
}

func TestProducerPublishFailureLeavesProcessing(t *testing.T) {
	comms := newMemCommStore()
	comms.put(pendingComm("comm-1", "camp-1", 0, 3, time.Now()))
	ch := newMemChannel()
	ch.publishErr = errors.New("broker unavailable")

	p := startedProducer(t, comms, &stubVendor{}, ch)
	if _, err := p.TriggerNow(context.Background()); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	c := comms.get("comm-1")
	if c.Status != domain.CommunicationStatusProcessing {
		t.Errorf("status = %s, want PROCESSING awaiting sweep", c.Status)
	}
	if len(ch.sent()) != 0 {
		t.Error("no message should have been recorded")
	}
}

func TestProducerTriggerRequiresRunning(t *testing.T) {
	p := NewProducer(quietProducerConfig(), newMemCommStore(), &stubVendor{}, newMemChannel())

	if _, err := p.TriggerNow(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("TriggerNow before Start = %v, want ErrNotRunning", err)
	}
}

func TestProducerStopIdempotent(t *testing.T) {
	p := NewProducer(quietProducerConfig(), newMemCommStore(), &stubVendor{}, newMemChannel())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if p.Running() {
		t.Error("producer still running after stop")
	}
}

// blockingVendor holds its first call open until release is closed, keeping a
// batch in flight for as long as a test needs.
type blockingVendor struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (v *blockingVendor) Send(ctx context.Context, p vendorsim.Payload) (domain.Outcome, error) {
	v.once.Do(func() { close(v.started) })
	<-v.release
	return domain.SuccessOutcome("vnd_blocked", 1, time.Now()), nil
}

func TestProducerStaysResponsiveDuringDrain(t *testing.T) {
	comms := newMemCommStore()
	comms.put(pendingComm("comm-1", "camp-1", 0, 3, time.Now()))
	vendor := &blockingVendor{started: make(chan struct{}), release: make(chan struct{})}

	cfg := quietProducerConfig()
	cfg.PollInterval = 10 * time.Millisecond
	p := NewProducer(cfg, comms, vendor, newMemChannel())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	<-vendor.started

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = p.Stop()
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		res := make(chan bool, 1)
		go func() { res <- p.Running() }()
		var running bool
		select {
		case running = <-res:
		case <-time.After(time.Second):
			t.Fatal("Running() blocked while the batch was draining")
		}
		if !running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("producer still reports running during stop")
		}
		time.Sleep(5 * time.Millisecond)
	}

	trigRes := make(chan error, 1)
	go func() {
		_, err := p.TriggerNow(context.Background())
		trigRes <- err
	}()
	select {
	case err := <-trigRes:
		if !errors.Is(err, ErrNotRunning) {
			t.Errorf("TriggerNow during stop = %v, want ErrNotRunning", err)
		}
	case <-time.After(time.Second):
		t.Fatal("TriggerNow blocked while the batch was draining")
	}

	close(vendor.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the batch drained")
	}
}

func TestProducerPollLoopDispatches(t *testing.T) {
	comms := newMemCommStore()
	comms.put(pendingComm("comm-1", "camp-1", 0, 3, time.Now()))
	ch := newMemChannel()

	cfg := DefaultProducerConfig()
	cfg.PollInterval = 10 * time.Millisecond
	p := NewProducer(cfg, comms, &stubVendor{}, ch)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop()

	deadline := time.After(2 * time.Second)
	for len(ch.sent()) == 0 {
		select {
		case <-deadline:
			t.Fatal("poll loop never dispatched the pending item")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
