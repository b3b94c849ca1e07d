// Package sse implements the notification stream endpoint of spec.md
// §6.3: GET /notifications/stream, authenticated, authorized against the
// caller's projects, emitting "connected", "error_notification", and
// periodic "heartbeat" server-sent events.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/loganalytics/platform/internal/notify"
	"github.com/loganalytics/platform/internal/platform/logging"
)

// ProjectLister resolves the set of project IDs an authenticated account
// may subscribe to.
type ProjectLister interface {
	ListProjectIDsByAccount(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error)
}

// Handler serves the notification stream.
type Handler struct {
	bus       *notify.Bus
	projects  ProjectLister
	logger    *logging.Logger
	heartbeat time.Duration
}

// NewHandler builds a Handler with the default 30s heartbeat interval
// (§4.13); pass heartbeat <= 0 to accept that default explicitly.
func NewHandler(bus *notify.Bus, projects ProjectLister, logger *logging.Logger, heartbeat time.Duration) *Handler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Handler{bus: bus, projects: projects, logger: logger, heartbeat: heartbeat}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(logging.GetAccountID(r.Context()))
	if err != nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	projectIDs, err := h.projects.ListProjectIDsByAccount(r.Context(), accountID)
	if err != nil {
		http.Error(w, "failed to resolve projects", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events := make(chan notify.Event, 32)
	channels := make([]string, 0, len(projectIDs))
	for _, pid := range projectIDs {
		ch := notify.Channel(pid)
		channels = append(channels, ch)
		if err := h.bus.Subscribe(ch, func(_ context.Context, e notify.Event) error {
			select {
			case events <- e:
			default: // slow client: drop rather than block the bus
			}
			return nil
		}); err != nil {
			h.logger.WithContext(r.Context()).WithError(err).Warn("subscribe notification channel failed")
		}
	}
	defer func() {
		for _, ch := range channels {
			_ = h.bus.Unsubscribe(ch)
		}
	}()

	writeEvent(w, "connected", map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"projects":  projectIDs,
	})
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			writeEvent(w, "error_notification", json.RawMessage(e.Payload))
			flusher.Flush()
		case <-ticker.C:
			writeEvent(w, "heartbeat", map[string]interface{}{"timestamp": time.Now().UTC().Format(time.RFC3339)})
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}
