package domain

import "time"

type CommunicationStatus string

const (
	CommunicationStatusPending    CommunicationStatus = "PENDING"
	CommunicationStatusProcessing CommunicationStatus = "PROCESSING"
	CommunicationStatusDelivered  CommunicationStatus = "DELIVERED"
	CommunicationStatusFailed     CommunicationStatus = "FAILED"
)

// Communication is one message owed to one customer for one campaign.
// Rows are created by campaign scheduling and mutated only by the delivery
// pipeline: the producer flips PENDING to PROCESSING, the consumer moves
// PROCESSING to a terminal state or back to PENDING for retry.
type Communication struct {
	ID            string              `json:"id" db:"id"`
	CampaignID    string              `json:"campaign_id" db:"campaign_id"`
	CustomerID    string              `json:"customer_id" db:"customer_id"`
	CustomerEmail string              `json:"customer_email" db:"customer_email"`
	CustomerName  string              `json:"customer_name" db:"customer_name"`
	MessageText   string              `json:"message_text" db:"message_text"`
	Status        CommunicationStatus `json:"status" db:"status"`
	Attempts      int                 `json:"attempts" db:"attempts"`
	MaxAttempts   int                 `json:"max_attempts" db:"max_attempts"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty" db:"last_attempt_at"`
	DeliveredAt   *time.Time          `json:"delivered_at,omitempty" db:"delivered_at"`
	VendorRef     string              `json:"vendor_ref,omitempty" db:"vendor_ref"`
	LastError     string              `json:"last_error,omitempty" db:"last_error"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at" db:"updated_at"`
}

// Terminal reports whether the communication has reached a final state.
// DELIVERED and FAILED are immutable thereafter.
func (c *Communication) Terminal() bool {
	return c.Status == CommunicationStatusDelivered || c.Status == CommunicationStatusFailed
}

// AttemptsExhausted reports whether the attempt budget is used up.
func (c *Communication) AttemptsExhausted() bool {
	return c.Attempts >= c.MaxAttempts
}
