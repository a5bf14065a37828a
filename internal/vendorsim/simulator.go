// Package vendorsim simulates an external email delivery vendor: random
// latency, probabilistic success, and a fixed failure taxonomy. It exists so
// the delivery pipeline can be exercised end to end without a real provider.
package vendorsim

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/prateekshukla17/XenCRM-Backend/internal/domain"
)

const (
	minDelay    = 50 * time.Millisecond
	segmentSize = 160
)

// Payload is the wire contract between the producer and the vendor.
type Payload struct {
	CommunicationID string    `json:"communication_id"`
	CampaignID      string    `json:"campaign_id"`
	CustomerID      string    `json:"customer_id"`
	CustomerEmail   string    `json:"customer_email"`
	CustomerName    string    `json:"customer_name"`
	MessageText     string    `json:"message_text"`
	AttemptNumber   int       `json:"attempt_number"`
	MaxAttempts     int       `json:"max_attempts"`
	Timestamp       time.Time `json:"timestamp"`
}

type Config struct {
	SuccessRate    float64       `yaml:"success_rate" env:"VENDOR_SUCCESS_RATE"`
	AvgDelay       time.Duration `yaml:"avg_delay" env:"VENDOR_AVG_DELAY"`
	DelayVariation time.Duration `yaml:"delay_variation" env:"VENDOR_DELAY_VARIATION"`
	BaseUnitCost   float64       `yaml:"base_unit_cost" env:"VENDOR_BASE_UNIT_COST"`
}

func DefaultConfig() Config {
	return Config{
		SuccessRate:    0.9,
		AvgDelay:       500 * time.Millisecond,
		DelayVariation: 300 * time.Millisecond,
		BaseUnitCost:   1.0,
	}
}

// failureTaxonomy is the fixed set of vendor-level failures, drawn uniformly.
var failureTaxonomy = []domain.FailureReason{
	domain.FailureInvalidEmail,
	domain.FailureEmailBounced,
	domain.FailureRateLimited,
	domain.FailureTemporary,
	domain.FailureSpamDetected,
	domain.FailureQuotaExceeded,
}

// Simulator is safe for concurrent use; the only shared state is
// configuration and the guarded RNG.
type Simulator struct {
	mu          sync.Mutex
	successRate float64
	rng         *rand.Rand

	avgDelay       time.Duration
	delayVariation time.Duration
	baseUnitCost   float64
	sleep          func(ctx context.Context, d time.Duration) error
	now            func() time.Time
}

func New(cfg Config) *Simulator {
	return &Simulator{
		successRate:    cfg.SuccessRate,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		avgDelay:       cfg.AvgDelay,
		delayVariation: cfg.DelayVariation,
		baseUnitCost:   cfg.BaseUnitCost,
		sleep:          sleepContext,
		now:            time.Now,
	}
}

// WithRand replaces the RNG for deterministic tests.
func (s *Simulator) WithRand(rng *rand.Rand) *Simulator {
	s.rng = rng
	return s
}

// WithSleep replaces the latency sleep for tests.
func (s *Simulator) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Simulator {
	s.sleep = sleep
	return s
}

// SetSuccessRate updates the success probability at runtime. Out-of-range
// values are rejected.
func (s *Simulator) SetSuccessRate(rate float64) error {
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return fmt.Errorf("success rate %v out of range [0, 1]", rate)
	}
	s.mu.Lock()
	s.successRate = rate
	s.mu.Unlock()
	return nil
}

func (s *Simulator) SuccessRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.successRate
}

// Send performs one simulated vendor call. Validation failures return
// immediately; everything else pays the simulated latency first. The error
// return is reserved for transport failures a real vendor client would hit;
// the simulator always answers with an outcome instead.
func (s *Simulator) Send(ctx context.Context, p Payload) (domain.Outcome, error) {
	if p.CustomerEmail == "" {
		return domain.ValidationOutcome("missing customer email", s.now()), nil
	}
	if p.MessageText == "" {
		return domain.ValidationOutcome("missing message text", s.now()), nil
	}

	if err := s.sleep(ctx, s.delay()); err != nil {
		return domain.ErrorOutcome(err, s.now()), nil
	}

	s.mu.Lock()
	draw := s.rng.Float64()
	rate := s.successRate
	var pick int
	if draw > rate {
		pick = s.rng.Intn(len(failureTaxonomy))
	}
	s.mu.Unlock()

	if draw <= rate {
		return domain.SuccessOutcome(s.vendorRef(), s.cost(p.MessageText), s.now()), nil
	}
	return domain.FailedOutcome(failureTaxonomy[pick], s.now()), nil
}

// delay draws avg ± variation, floored so even the fastest simulated call
// costs something.
func (s *Simulator) delay() time.Duration {
	s.mu.Lock()
	spread := time.Duration(0)
	if s.delayVariation > 0 {
		spread = time.Duration(s.rng.Int63n(int64(2*s.delayVariation))) - s.delayVariation
	}
	s.mu.Unlock()

	d := s.avgDelay + spread
	if d < minDelay {
		d = minDelay
	}
	return d
}

// vendorRef combines a timestamp component with random bits, unique per call.
func (s *Simulator) vendorRef() string {
	s.mu.Lock()
	suffix := s.rng.Uint32()
	s.mu.Unlock()
	return fmt.Sprintf("vnd_%d_%08x", s.now().UnixNano(), suffix)
}

// cost bills one base unit per 160-character segment, rounded up.
func (s *Simulator) cost(message string) float64 {
	segments := (len(message) + segmentSize - 1) / segmentSize
	return float64(segments) * s.baseUnitCost
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
