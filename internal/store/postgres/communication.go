package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/prateekshukla17/XenCRM-Backend/internal/domain"
	"github.com/prateekshukla17/XenCRM-Backend/internal/store"
)

const communicationColumns = `
	id, campaign_id, customer_id, customer_email, customer_name, message_text,
	status, attempts, max_attempts, last_attempt_at, delivered_at, vendor_ref,
	last_error, created_at, updated_at`

type CommunicationStore struct {
	db *DB
}

func NewCommunicationStore(db *DB) *CommunicationStore {
	return &CommunicationStore{db: db}
}

func (s *CommunicationStore) Create(ctx context.Context, c *domain.Communication) error {
	query := `
		INSERT INTO communications
			(id, campaign_id, customer_id, customer_email, customer_name, message_text,
			 status, attempts, max_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.Pool.Exec(ctx, query,
		c.ID,
		c.CampaignID,
		c.CustomerID,
		c.CustomerEmail,
		c.CustomerName,
		c.MessageText,
		c.Status,
		c.Attempts,
		c.MaxAttempts,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert communication: %w", err)
	}
	return nil
}

// FindDue returns pending communications with attempt budget remaining,
// oldest first so continuous new arrivals cannot starve old items.
func (s *CommunicationStore) FindDue(ctx context.Context, limit int) ([]*domain.Communication, error) {
	query := `
		SELECT ` + communicationColumns + `
		FROM communications
		WHERE status = 'PENDING' AND attempts < max_attempts
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := s.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query due communications: %w", err)
	}
	defer rows.Close()

	var comms []*domain.Communication
	for rows.Next() {
		c, err := scanCommunication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due communication: %w", err)
		}
		comms = append(comms, c)
	}
	return comms, rows.Err()
}

// MarkProcessing is the atomic claim step: the WHERE clause on status makes
// sure only one caller ever moves a given row out of PENDING.
func (s *CommunicationStore) MarkProcessing(ctx context.Context, id string) (*domain.Communication, error) {
	query := `
		UPDATE communications
		SET status = 'PROCESSING',
		    attempts = attempts + 1,
		    last_attempt_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING ` + communicationColumns
	c, err := scanCommunication(s.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotPending
		}
		return nil, fmt.Errorf("mark communication processing: %w", err)
	}
	return c, nil
}

// ApplyOutcome is the consumer's reconciliation step, conditional on the row
// still being PROCESSING so redelivered outcomes cannot touch terminal rows.
func (s *CommunicationStore) ApplyOutcome(ctx context.Context, id string, upd store.OutcomeUpdate) (*domain.Communication, error) {
	query := `
		UPDATE communications
		SET status = $2,
		    vendor_ref = CASE WHEN $3 <> '' THEN $3 ELSE vendor_ref END,
		    last_error = $4,
		    delivered_at = COALESCE($5, delivered_at),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'PROCESSING'
		RETURNING ` + communicationColumns
	c, err := scanCommunication(s.db.Pool.QueryRow(ctx, query,
		id, upd.Status, upd.VendorRef, upd.LastError, upd.DeliveredAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotProcessing
		}
		return nil, fmt.Errorf("apply communication outcome: %w", err)
	}
	return c, nil
}

func (s *CommunicationStore) GetByID(ctx context.Context, id string) (*domain.Communication, error) {
	query := `
		SELECT ` + communicationColumns + `
		FROM communications
		WHERE id = $1
	`
	c, err := scanCommunication(s.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get communication: %w", err)
	}
	return c, nil
}

// SweepStale resets PROCESSING rows whose last attempt is older than the
// threshold back to PENDING. Crash recovery, run only on explicit request.
func (s *CommunicationStore) SweepStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE communications
		SET status = 'PENDING', updated_at = NOW()
		WHERE status = 'PROCESSING' AND last_attempt_at < $1
	`
	tag, err := s.db.Pool.Exec(ctx, query, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("sweep stale communications: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanCommunication(row pgx.Row) (*domain.Communication, error) {
	var c domain.Communication
	err := row.Scan(
		&c.ID,
		&c.CampaignID,
		&c.CustomerID,
		&c.CustomerEmail,
		&c.CustomerName,
		&c.MessageText,
		&c.Status,
		&c.Attempts,
		&c.MaxAttempts,
		&c.LastAttemptAt,
		&c.DeliveredAt,
		&c.VendorRef,
		&c.LastError,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
