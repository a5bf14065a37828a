// Package httpclient is the Go client for the admin API, used by xenctl.
package httpclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prateekshukla17/XenCRM-Backend/internal/domain"
	"github.com/prateekshukla17/XenCRM-Backend/internal/events"
	"github.com/prateekshukla17/XenCRM-Backend/internal/pipeline"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// EnqueueRequest describes a communication to add to the delivery queue.
type EnqueueRequest struct {
	CampaignID    string `json:"campaign_id"`
	CustomerID    string `json:"customer_id"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	MessageText   string `json:"message_text"`
	MaxAttempts   int    `json:"max_attempts,omitempty"`
}

func (c *Client) Health(ctx context.Context) (*pipeline.Health, error) {
	var h pipeline.Health
	if err := c.do(ctx, http.MethodGet, "/v1/messaging/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) Trigger(ctx context.Context) (int, error) {
	var resp struct {
		Dispatched int `json:"dispatched"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/messaging/trigger", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Dispatched, nil
}

func (c *Client) Sweep(ctx context.Context) (int64, error) {
	var resp struct {
		Reclaimed int64 `json:"reclaimed"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/messaging/sweep", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Reclaimed, nil
}

func (c *Client) Stats(ctx context.Context) (map[string]int64, error) {
	var resp struct {
		Outcomes map[string]int64 `json:"outcomes"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/messaging/stats", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Outcomes, nil
}

func (c *Client) Counters(ctx context.Context, campaignID string) (*domain.CampaignCounters, error) {
	var counters domain.CampaignCounters
	path := "/v1/campaigns/" + url.PathEscape(campaignID) + "/counters"
	if err := c.do(ctx, http.MethodGet, path, nil, &counters); err != nil {
		return nil, err
	}
	return &counters, nil
}

func (c *Client) Enqueue(ctx context.Context, req EnqueueRequest) (*domain.Communication, error) {
	var comm domain.Communication
	if err := c.do(ctx, http.MethodPost, "/v1/communications/", req, &comm); err != nil {
		return nil, err
	}
	return &comm, nil
}

func (c *Client) GetCommunication(ctx context.Context, id string) (*domain.Communication, error) {
	var comm domain.Communication
	path := "/v1/communications/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, path, nil, &comm); err != nil {
		return nil, err
	}
	return &comm, nil
}

// StreamEvents opens the SSE delivery-event stream. The returned channel
// closes when the context is canceled or the server ends the stream.
func (c *Client) StreamEvents(ctx context.Context, communicationID, campaignID string) (<-chan events.DeliveryEvent, error) {
	q := url.Values{}
	if communicationID != "" {
		q.Set("communication_id", communicationID)
	}
	if campaignID != "" {
		q.Set("campaign_id", campaignID)
	}
	endpoint := c.baseURL + "/v1/messaging/events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	// The stream outlives the client's request timeout.
	streamClient := &http.Client{}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	ch := make(chan events.DeliveryEvent, 100)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var event events.DeliveryEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				continue
			}
			select {
			case ch <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
