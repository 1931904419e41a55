package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	// sseKeepAliveInterval is how often a comment line is sent to keep
	// idle connections open through proxies.
	sseKeepAliveInterval = 15 * time.Second
	// sseMaxDuration is the maximum time an SSE stream may remain open.
	sseMaxDuration = 4 * time.Hour
)

// sseEvent represents an event sent via SSE.
type sseEvent struct {
	EventType string           `json:"event_type"`
	Jobs      listJobsResponse `json:"jobs"`
	Timestamp time.Time        `json:"timestamp"`
}

// streamJobs handles GET /jobs/stream (SSE). Each event carries the full
// current job list so clients never have to reconcile deltas.
func (s *Server) streamJobs(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	updates, unsubscribe := s.queue.Subscribe()
	defer unsubscribe()

	deadlineTimer := time.NewTimer(sseMaxDuration)
	defer deadlineTimer.Stop()
	keepAlive := time.NewTicker(sseKeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-deadlineTimer.C:
			sendSSEEvent(w, flusher, sseEvent{
				EventType: "timeout",
				Timestamp: time.Now(),
			})
			return

		case snapshot := <-updates:
			sendSSEEvent(w, flusher, sseEvent{
				EventType: "jobs_update",
				Jobs:      domainJobsToResponse(snapshot),
				Timestamp: time.Now(),
			})

		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

// sendSSEEvent writes a single SSE event to the response writer.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event sseEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, data)
	flusher.Flush()
}
