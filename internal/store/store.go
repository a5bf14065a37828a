package store

import (
	"context"
	"errors"
	"time"

	"github.com/prateekshukla17/XenCRM-Backend/internal/domain"
)

var (
	// ErrNotFound means no communication exists with the given id.
	ErrNotFound = errors.New("store: communication not found")

	// ErrNotPending means a conditional PENDING->PROCESSING flip matched no
	// row: the item was already picked up, reconciled, or never pending.
	ErrNotPending = errors.New("store: communication not pending")

	// ErrNotProcessing means a reconciliation matched no PROCESSING row,
	// which under at-least-once consumption indicates a redelivered outcome.
	ErrNotProcessing = errors.New("store: communication not processing")

	// ErrDuplicateReceipt means a receipt already exists for the
	// (communication, attempt) pair.
	ErrDuplicateReceipt = errors.New("store: duplicate receipt")
)

// OutcomeUpdate carries the fields the consumer persists after reconciling
// one outcome.
type OutcomeUpdate struct {
	Status      domain.CommunicationStatus
	VendorRef   string
	LastError   string
	DeliveredAt *time.Time
}

type CommunicationStore interface {
	// FindDue returns up to limit communications with status PENDING and
	// attempts below their budget, oldest created first.
	FindDue(ctx context.Context, limit int) ([]*domain.Communication, error)

	// MarkProcessing atomically flips one PENDING communication to
	// PROCESSING, incrementing attempts and stamping last_attempt_at. It
	// returns ErrNotPending when the row is no longer PENDING.
	MarkProcessing(ctx context.Context, id string) (*domain.Communication, error)

	// ApplyOutcome moves one PROCESSING communication to the given status.
	// It returns ErrNotProcessing when the row already left PROCESSING.
	ApplyOutcome(ctx context.Context, id string, upd OutcomeUpdate) (*domain.Communication, error)

	GetByID(ctx context.Context, id string) (*domain.Communication, error)

	// SweepStale resets PROCESSING communications older than the threshold
	// back to PENDING. Explicit maintenance only; never run implicitly.
	SweepStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

type ReceiptStore interface {
	// Create inserts one receipt, returning ErrDuplicateReceipt when the
	// (communication_id, attempt_number) pair was already recorded.
	Create(ctx context.Context, r *domain.Receipt) error

	// RollingStats returns receipt counts by outcome status since the given
	// time.
	RollingStats(ctx context.Context, since time.Time) (map[string]int64, error)
}

type CounterStore interface {
	// Apply upserts the delta onto the campaign's counters.
	Apply(ctx context.Context, campaignID string, delta domain.CounterDelta) error

	Get(ctx context.Context, campaignID string) (*domain.CampaignCounters, error)
}
