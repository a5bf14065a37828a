package events

import "time"

type EventStatus string

const (
	EventStatusDelivered EventStatus = "DELIVERED"
	EventStatusFailed    EventStatus = "FAILED"
	EventStatusRetrying  EventStatus = "RETRYING"
)

// DeliveryEvent is the in-process notification emitted after each outcome is
// reconciled. Feeds the SSE endpoint and the watch UI; never authoritative.
type DeliveryEvent struct {
	CommunicationID string      `json:"communication_id"`
	CampaignID      string      `json:"campaign_id"`
	CustomerID      string      `json:"customer_id"`
	Status          EventStatus `json:"status"`
	VendorRef       string      `json:"vendor_ref,omitempty"`
	ErrorCode       string      `json:"error_code,omitempty"`
	Message         string      `json:"message,omitempty"`
	Attempt         int         `json:"attempt"`
	Timestamp       time.Time   `json:"timestamp"`
}
