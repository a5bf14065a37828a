package domain

import "time"

// Receipt is an immutable record of one delivery attempt's outcome. One row
// per (communication, attempt) pair; redelivered outcomes dedupe on that key.
type Receipt struct {
	ID              string        `json:"id" db:"id"`
	CommunicationID string        `json:"communication_id" db:"communication_id"`
	CampaignID      string        `json:"campaign_id" db:"campaign_id"`
	AttemptNumber   int           `json:"attempt_number" db:"attempt_number"`
	Status          OutcomeKind   `json:"status" db:"status"`
	VendorRef       string        `json:"vendor_ref,omitempty" db:"vendor_ref"`
	ErrorCode       FailureReason `json:"error_code,omitempty" db:"error_code"`
	ErrorMessage    string        `json:"error_message,omitempty" db:"error_message"`
	Cost            float64       `json:"cost,omitempty" db:"cost"`
	ReceivedAt      time.Time     `json:"received_at" db:"received_at"`
}
