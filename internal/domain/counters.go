package domain

import "time"

// CampaignCounters are per-campaign aggregates maintained incrementally by
// the consumer. Eventually consistent with the sum of communication states;
// never authoritative.
type CampaignCounters struct {
	CampaignID string    `json:"campaign_id" db:"campaign_id"`
	Sent       int64     `json:"sent" db:"sent"`
	Delivered  int64     `json:"delivered" db:"delivered"`
	Failed     int64     `json:"failed" db:"failed"`
	Pending    int64     `json:"pending" db:"pending"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// CounterDelta is one increment applied to a campaign's counters.
type CounterDelta struct {
	Sent      int64
	Delivered int64
	Failed    int64
	Pending   int64
}

func (d CounterDelta) Zero() bool {
	return d.Sent == 0 && d.Delivered == 0 && d.Failed == 0 && d.Pending == 0
}

// DeltaForDelivered is the counter movement for a terminal DELIVERED
// reconciliation: the message left the pending pool successfully.
func DeltaForDelivered() CounterDelta {
	return CounterDelta{Sent: 1, Delivered: 1, Pending: -1}
}

// DeltaForFailed is the counter movement for a terminal FAILED
// reconciliation. A retry (back to PENDING) moves nothing: the message never
// conceptually left the pending pool.
func DeltaForFailed() CounterDelta {
	return CounterDelta{Sent: 1, Failed: 1, Pending: -1}
}
