package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/prateekshukla17/XenCRM-Backend/internal/events"
)

const heartbeatInterval = 15 * time.Second

// handleEvents streams delivery events over SSE, optionally filtered by
// communication_id or campaign_id query parameters.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		errorJSON(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := &events.Subscriber{
		ID:              uuid.New().String(),
		CommunicationID: r.URL.Query().Get("communication_id"),
		CampaignID:      r.URL.Query().Get("campaign_id"),
		Events:          make(chan events.DeliveryEvent, 100),
	}
	s.hub.Subscribe(sub)
	defer s.hub.Unsubscribe(sub.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case event, open := <-sub.Events:
			if !open {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: delivery\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
