package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/prateekshukla17/XenCRM-Backend/internal/domain"
	"github.com/prateekshukla17/XenCRM-Backend/internal/store"
)

type ReceiptStore struct {
	db *DB
}

func NewReceiptStore(db *DB) *ReceiptStore {
	return &ReceiptStore{db: db}
}

func (s *ReceiptStore) Create(ctx context.Context, r *domain.Receipt) error {
	query := `
		INSERT INTO receipts
			(id, communication_id, campaign_id, attempt_number, status,
			 vendor_ref, error_code, error_message, cost, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.Pool.Exec(ctx, query,
		r.ID,
		r.CommunicationID,
		r.CampaignID,
		r.AttemptNumber,
		r.Status,
		r.VendorRef,
		r.ErrorCode,
		r.ErrorMessage,
		r.Cost,
		r.ReceivedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return store.ErrDuplicateReceipt
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func (s *ReceiptStore) RollingStats(ctx context.Context, since time.Time) (map[string]int64, error) {
	query := `
		SELECT status, COUNT(*) AS total
		FROM receipts
		WHERE received_at >= $1
		GROUP BY status
	`
	rows, err := s.db.Pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query receipt stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan receipt stat: %w", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
