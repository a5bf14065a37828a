package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prateekshukla17/XenCRM-Backend/internal/broker"
	"github.com/prateekshukla17/XenCRM-Backend/internal/domain"
	"github.com/prateekshukla17/XenCRM-Backend/internal/store"
	"github.com/prateekshukla17/XenCRM-Backend/internal/vendorsim"
)

// memCommStore implements store.CommunicationStore in memory with the same
// conditional-update semantics as the postgres implementation.
type memCommStore struct {
	mu    sync.Mutex
	comms map[string]domain.Communication

	findErr  error
	applyErr error
}

func newMemCommStore() *memCommStore {
	return &memCommStore{comms: make(map[string]domain.Communication)}
}

func (s *memCommStore) put(c domain.Communication) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comms[c.ID] = c
}

func (s *memCommStore) get(id string) domain.Communication {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comms[id]
}

func (s *memCommStore) FindDue(ctx context.Context, limit int) ([]*domain.Communication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}

	var due []*domain.Communication
	for _, c := range s.comms {
		if c.Status == domain.CommunicationStatusPending && c.Attempts < c.MaxAttempts {
			c := c
			due = append(due, &c)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *memCommStore) MarkProcessing(ctx context.Context, id string) (*domain.Communication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comms[id]
	if !ok || c.Status != domain.CommunicationStatusPending {
		return nil, store.ErrNotPending
	}
	now := time.Now()
	c.Status = domain.CommunicationStatusProcessing
	c.Attempts++
	c.LastAttemptAt = &now
	c.UpdatedAt = now
	s.comms[id] = c
	return &c, nil
}

func (s *memCommStore) ApplyOutcome(ctx context.Context, id string, upd store.OutcomeUpdate) (*domain.Communication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return nil, s.applyErr
	}
	c, ok := s.comms[id]
	if !ok || c.Status != domain.CommunicationStatusProcessing {
		return nil, store.ErrNotProcessing
	}
	c.Status = upd.Status
	if upd.VendorRef != "" {
		c.VendorRef = upd.VendorRef
	}
	c.LastError = upd.LastError
	if upd.DeliveredAt != nil {
		c.DeliveredAt = upd.DeliveredAt
	}
	c.UpdatedAt = time.Now()
	s.comms[id] = c
	return &c, nil
}

func (s *memCommStore) GetByID(ctx context.Context, id string) (*domain.Communication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *memCommStore) SweepStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var n int64
	for id, c := range s.comms {
		if c.Status == domain.CommunicationStatusProcessing &&
			c.LastAttemptAt != nil && c.LastAttemptAt.Before(cutoff) {
			c.Status = domain.CommunicationStatusPending
			s.comms[id] = c
			n++
		}
	}
	return n, nil
}

// memReceiptStore implements store.ReceiptStore with the dedupe key.
type memReceiptStore struct {
	mu       sync.Mutex
	receipts []domain.Receipt
	seen     map[string]bool

	createErr error
}

func newMemReceiptStore() *memReceiptStore {
	return &memReceiptStore{seen: make(map[string]bool)}
}

func (s *memReceiptStore) Create(ctx context.Context, r *domain.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	key := fmt.Sprintf("%s/%d", r.CommunicationID, r.AttemptNumber)
	if s.seen[key] {
		return store.ErrDuplicateReceipt
	}
	s.seen[key] = true
	s.receipts = append(s.receipts, *r)
	return nil
}

func (s *memReceiptStore) RollingStats(ctx context.Context, since time.Time) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := make(map[string]int64)
	for _, r := range s.receipts {
		if !r.ReceivedAt.Before(since) {
			stats[string(r.Status)]++
		}
	}
	return stats, nil
}

func (s *memReceiptStore) all() []domain.Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Receipt(nil), s.receipts...)
}

// memCounterStore implements store.CounterStore.
type memCounterStore struct {
	mu       sync.Mutex
	counters map[string]domain.CampaignCounters

	applyErr error
}

func newMemCounterStore() *memCounterStore {
	return &memCounterStore{counters: make(map[string]domain.CampaignCounters)}
}

func (s *memCounterStore) Apply(ctx context.Context, campaignID string, delta domain.CounterDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return s.applyErr
	}
	c := s.counters[campaignID]
	c.CampaignID = campaignID
	c.Sent += delta.Sent
	c.Delivered += delta.Delivered
	c.Failed += delta.Failed
	c.Pending += delta.Pending
	s.counters[campaignID] = c
	return nil
}

func (s *memCounterStore) Get(ctx context.Context, campaignID string) (*domain.CampaignCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[campaignID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

// publishedMsg is one Publish call recorded by memChannel.
type publishedMsg struct {
	subject string
	key     string
	data    []byte
}

// memChannel implements broker.Channel. With autoDeliver set, Publish feeds
// the subscribed handler synchronously, closing the pipeline loop in tests.
type memChannel struct {
	mu          sync.Mutex
	active      bool
	published   []publishedMsg
	handler     broker.Handler
	autoDeliver bool

	connectErr error
	publishErr error
	consumeErr error
}

func newMemChannel() *memChannel { return &memChannel{} }

func (c *memChannel) EnsureConnected(ctx context.Context) error {
	if c.connectErr != nil {
		return c.connectErr
	}
	c.mu.Lock()
	c.active = true
	c.mu.Unlock()
	return nil
}

func (c *memChannel) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *memChannel) Publish(ctx context.Context, subject, key string, data []byte) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.mu.Lock()
	c.published = append(c.published, publishedMsg{subject: subject, key: key, data: data})
	h := c.handler
	deliver := c.autoDeliver
	c.mu.Unlock()

	if deliver && h != nil {
		_ = h(ctx, data) // handler errors terminate the message, nothing to requeue
	}
	return nil
}

func (c *memChannel) Consume(ctx context.Context, subject string, h broker.Handler, opts broker.ConsumeOptions) (broker.Subscription, error) {
	if c.consumeErr != nil {
		return nil, c.consumeErr
	}
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
	return &memSubscription{}, nil
}

func (c *memChannel) Close() error {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
	return nil
}

func (c *memChannel) sent() []publishedMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]publishedMsg(nil), c.published...)
}

type memSubscription struct{}

func (s *memSubscription) Drain() error { return nil }

// stubVendor returns canned outcomes in sequence, repeating the last one.
type stubVendor struct {
	mu       sync.Mutex
	outcomes []domain.Outcome
	errs     []error
	calls    int
	payloads []vendorsim.Payload
}

func (v *stubVendor) Send(ctx context.Context, p vendorsim.Payload) (domain.Outcome, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	i := v.calls
	v.calls++
	v.payloads = append(v.payloads, p)

	if i < len(v.errs) && v.errs[i] != nil {
		return domain.Outcome{}, v.errs[i]
	}
	if len(v.outcomes) == 0 {
		return domain.SuccessOutcome("vnd_stub", 1, time.Now()), nil
	}
	if i >= len(v.outcomes) {
		i = len(v.outcomes) - 1
	}
	return v.outcomes[i], nil
}

func (v *stubVendor) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func pendingComm(id, campaignID string, attempts, maxAttempts int, createdAt time.Time) domain.Communication {
	return domain.Communication{
		ID:            id,
		CampaignID:    campaignID,
		CustomerID:    "cust-" + id,
		CustomerEmail: id + "@example.com",
		CustomerName:  "Customer " + id,
		MessageText:   "hello from the campaign",
		Status:        domain.CommunicationStatusPending,
		Attempts:      attempts,
		MaxAttempts:   maxAttempts,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}
