// Package pipeline implements the asynchronous message-delivery core: a
// polling producer that claims pending communications and calls the vendor,
// a consumer that reconciles published outcomes back into the store, and a
// coordinator owning their shared lifecycle.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/prateekshukla17/XenCRM-Backend/internal/domain"
	"github.com/prateekshukla17/XenCRM-Backend/internal/vendorsim"
)

// OutcomeSubject is the broker subject carrying delivery outcomes from the
// producer to the consumer.
const OutcomeSubject = "messaging.outcomes"

// Vendor is the delivery provider the producer calls. The error return is
// for transport-level failures; the producer wraps those as SYSTEM_ERROR
// outcomes so the standard retry path applies.
type Vendor interface {
	Send(ctx context.Context, p vendorsim.Payload) (domain.Outcome, error)
}

// OutcomeMessage is the wire contract over the outcome subject.
type OutcomeMessage struct {
	CommunicationID  string          `json:"communication_id"`
	CampaignID       string          `json:"campaign_id"`
	CustomerID       string          `json:"customer_id"`
	CustomerEmail    string          `json:"customer_email"`
	AttemptNumber    int             `json:"attempt_number"`
	DeliveryResponse *domain.Outcome `json:"delivery_response"`
	ProcessedAt      time.Time       `json:"processed_at"`
}

// Validate rejects messages that cannot be reconciled at all. Anything
// failing here is poison: terminated without redelivery.
func (m *OutcomeMessage) Validate() error {
	if m.CommunicationID == "" {
		return fmt.Errorf("outcome message missing communication id")
	}
	if m.DeliveryResponse == nil {
		return fmt.Errorf("outcome message missing delivery response")
	}
	switch m.DeliveryResponse.Kind {
	case domain.OutcomeSuccess, domain.OutcomeFailed, domain.OutcomeError:
	default:
		return fmt.Errorf("outcome message has unknown kind %q", m.DeliveryResponse.Kind)
	}
	return nil
}
