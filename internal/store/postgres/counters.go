package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/prateekshukla17/XenCRM-Backend/internal/domain"
	"github.com/prateekshukla17/XenCRM-Backend/internal/store"
)

type CounterStore struct {
	db *DB
}

func NewCounterStore(db *DB) *CounterStore {
	return &CounterStore{db: db}
}

func (s *CounterStore) Apply(ctx context.Context, campaignID string, delta domain.CounterDelta) error {
	if delta.Zero() {
		return nil
	}

	query := `
		INSERT INTO campaign_counters (campaign_id, sent, delivered, failed, pending, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (campaign_id)
		DO UPDATE SET
			sent = campaign_counters.sent + EXCLUDED.sent,
			delivered = campaign_counters.delivered + EXCLUDED.delivered,
			failed = campaign_counters.failed + EXCLUDED.failed,
			pending = campaign_counters.pending + EXCLUDED.pending,
			updated_at = NOW()
	`
	_, err := s.db.Pool.Exec(ctx, query,
		campaignID, delta.Sent, delta.Delivered, delta.Failed, delta.Pending)
	if err != nil {
		return fmt.Errorf("apply counter delta: %w", err)
	}
	return nil
}

func (s *CounterStore) Get(ctx context.Context, campaignID string) (*domain.CampaignCounters, error) {
	query := `
		SELECT campaign_id, sent, delivered, failed, pending, updated_at
		FROM campaign_counters
		WHERE campaign_id = $1
	`
	var c domain.CampaignCounters
	err := s.db.Pool.QueryRow(ctx, query, campaignID).Scan(
		&c.CampaignID,
		&c.Sent,
		&c.Delivered,
		&c.Failed,
		&c.Pending,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get campaign counters: %w", err)
	}
	return &c, nil
}
