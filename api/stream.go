package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// GET /api/v1/stream/sse streams mutation events as Server-Sent Events until
// the client disconnects. The event name carries the mutation type; the data
// line carries the event payload.
func (s *APIServer) handleStreamSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendErrorResponse(w, r, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	subscriber := s.store.SubscribeChannel("sse-"+uuid.NewString(), 100)
	defer s.store.Unsubscribe(subscriber.ID())

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-subscriber.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

// GET /api/v1/stream/jsonl dumps the tree in level order, one flattened node
// per line.
func (s *APIServer) handleStreamJSONL(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/jsonl")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for _, view := range s.store.Views() {
		if err := enc.Encode(view); err != nil {
			return
		}
	}
	s.countOp("stream_jsonl", "success")
}
