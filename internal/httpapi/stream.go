package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"sitevisor.org/internal/feed"
)

// Stream serves the change feed over Server-Sent Events. Events are scoped
// to the authenticated principal: admins receive everything, everyone else
// only events whose owner list names them. An optional ?table= narrows the
// stream to one entity.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	if a.feed == nil {
		http.Error(w, "streaming disabled", http.StatusServiceUnavailable)
		return
	}
	scope, ok := a.scope(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	filter := feed.Filter{Table: r.URL.Query().Get("table")}
	if !scope.Admin() {
		filter.OwnerID = scope.PrincipalID
	}
	ch, err := a.feed.Subscribe(ctx, filter)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "subscribe failed")
		return
	}

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for event := range ch {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("event: "))
		_, _ = w.Write([]byte(event.Table))
		_, _ = w.Write([]byte("\ndata: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}
