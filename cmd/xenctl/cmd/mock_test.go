package cmd

import (
	"context"

	"github.com/prateekshukla17/XenCRM-Backend/internal/domain"
	"github.com/prateekshukla17/XenCRM-Backend/internal/events"
	"github.com/prateekshukla17/XenCRM-Backend/internal/httpclient"
	"github.com/prateekshukla17/XenCRM-Backend/internal/pipeline"
)

type mockAPIClient struct {
	healthFunc   func(ctx context.Context) (*pipeline.Health, error)
	triggerFunc  func(ctx context.Context) (int, error)
	sweepFunc    func(ctx context.Context) (int64, error)
	statsFunc    func(ctx context.Context) (map[string]int64, error)
	countersFunc func(ctx context.Context, campaignID string) (*domain.CampaignCounters, error)
	enqueueFunc  func(ctx context.Context, req httpclient.EnqueueRequest) (*domain.Communication, error)
	streamFunc   func(ctx context.Context, communicationID, campaignID string) (<-chan events.DeliveryEvent, error)
}

func (m *mockAPIClient) Health(ctx context.Context) (*pipeline.Health, error) {
	return m.healthFunc(ctx)
}

func (m *mockAPIClient) Trigger(ctx context.Context) (int, error) {
	return m.triggerFunc(ctx)
}

func (m *mockAPIClient) Sweep(ctx context.Context) (int64, error) {
	return m.sweepFunc(ctx)
}

func (m *mockAPIClient) Stats(ctx context.Context) (map[string]int64, error) {
	return m.statsFunc(ctx)
}

func (m *mockAPIClient) Counters(ctx context.Context, campaignID string) (*domain.CampaignCounters, error) {
	return m.countersFunc(ctx, campaignID)
}

func (m *mockAPIClient) Enqueue(ctx context.Context, req httpclient.EnqueueRequest) (*domain.Communication, error) {
	return m.enqueueFunc(ctx, req)
}

func (m *mockAPIClient) StreamEvents(ctx context.Context, communicationID, campaignID string) (<-chan events.DeliveryEvent, error) {
	return m.streamFunc(ctx, communicationID, campaignID)
}
