package command

import (
	"fmt"
	"net/http"
	"time"

	"encoding/json/v2"

	"github.com/fieldnote/recorder-agent/internal/progress"
)

// progressStreamHandler serves GET /events: a Server-Sent Events feed of
// every progress.Event emitted by the bus, for the host UI to render
// mount/import/upload progress live.
type progressStreamHandler struct {
	bus *progress.Bus
}

func (h *progressStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Context().Err() != nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	client, err := h.bus.Connect()
	if err != nil {
		http.Error(w, "failed to connect", http.StatusInternalServerError)
		return
	}
	defer h.bus.Disconnect(client.ID)

	ctx := r.Context()
	for {
		select {
		case event, ok := <-client.EventChan:
			if !ok {
				return
			}
			if err := writeSSE(w, rc, event); err != nil {
				return
			}
		case <-client.Done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, rc *http.ResponseController, event progress.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}
	_ = rc.SetWriteDeadline(time.Now().Add(60 * time.Second))
	return nil
}
