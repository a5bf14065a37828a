package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prateekshukla17/XenCRM-Backend/internal/events"
)

func TestClientSendsAPIKey(t *testing.T) {
	var gotKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		json.NewEncoder(w).Encode(map[string]bool{"running": true})
	}))
	defer ts.Close()

	c := New(ts.URL, "xc_secret")
	if _, err := c.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if gotKey != "xc_secret" {
		t.Errorf("api key header = %q, want xc_secret", gotKey)
	}
}

func TestClientTrigger(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/messaging/trigger" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]int{"dispatched": 7})
	}))
	defer ts.Close()

	n, err := New(ts.URL, "k").Trigger(context.Background())
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if n != 7 {
		t.Errorf("dispatched = %d, want 7", n)
	}
}

func TestClientSurfacesServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "pipeline is not running"})
	}))
	defer ts.Close()

	_, err := New(ts.URL, "k").Trigger(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); got != "server returned 409: pipeline is not running" {
		t.Errorf("error = %q", got)
	}
}

func TestClientEnqueue(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req EnqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.CampaignID != "camp-1" {
			t.Errorf("campaign = %s, want camp-1", req.CampaignID)
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":"comm-9","campaign_id":%q,"status":"PENDING"}`, req.CampaignID)
	}))
	defer ts.Close()

	comm, err := New(ts.URL, "k").Enqueue(context.Background(), EnqueueRequest{
		CampaignID:    "camp-1",
		CustomerID:    "cust-1",
		CustomerEmail: "a@b.com",
		MessageText:   "hello",
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if comm.ID != "comm-9" {
		t.Errorf("id = %s, want comm-9", comm.ID)
	}
}

func TestClientStreamEvents(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("campaign_id"); got != "camp-1" {
			t.Errorf("campaign filter = %s, want camp-1", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "event: delivery\ndata: {\"communication_id\":\"comm-1\",\"status\":\"DELIVERED\"}\n\n")
		flusher.Flush()
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch, err := New(ts.URL, "k").StreamEvents(ctx, "", "camp-1")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	select {
	case event, ok := <-ch:
		if !ok {
			t.Fatal("stream closed before delivering an event")
		}
		if event.CommunicationID != "comm-1" || event.Status != events.EventStatusDelivered {
			t.Errorf("event = %+v", event)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}
