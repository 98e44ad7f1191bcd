package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/txconfirm/service/nats"
	"github.com/brojonat/txconfirm/service/program"
)

const sseKeepalive = 10 * time.Second

// handleStreamOutcomes handles SSE streaming of confirmation events.
// If the program path parameter is empty, streams all programs.
func handleStreamOutcomes(events EventWatcher, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("program")
		desc := "all programs"
		if name != "" {
			p, err := program.Lookup(name)
			if err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			name = p.Name
			desc = name
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		// Streams outlive the server-wide WriteTimeout.
		if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
			logger.WarnContext(r.Context(), "failed to clear write deadline", "error", err)
		}

		// Set SSE headers
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher.Flush()

		logger.DebugContext(r.Context(), "SSE client connected",
			"program", desc,
			"remote_addr", r.RemoteAddr,
		)

		eventCh := make(chan *nats.OutcomeEvent, 10)
		doneCh := make(chan error, 1)
		go func() {
			doneCh <- events.Watch(r.Context(), name, func(event *nats.OutcomeEvent) error {
				select {
				case eventCh <- event:
					return nil
				case <-r.Context().Done():
					return r.Context().Err()
				}
			})
		}()

		// Send initial connection event
		fmt.Fprintf(w, "event: connected\ndata: {\"program\":%q}\n\n", desc)
		flusher.Flush()

		keepalive := time.NewTicker(sseKeepalive)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				flusher.Flush()

			case event := <-eventCh:
				data, err := json.Marshal(event)
				if err != nil {
					logger.WarnContext(r.Context(), "failed to marshal event", "error", err)
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
				flusher.Flush()

				logger.DebugContext(r.Context(), "sent outcome event",
					"program", event.Program,
					"signature", event.Signature,
					"type", event.Type,
				)

			case err := <-doneCh:
				if err != nil && r.Context().Err() == nil {
					logger.ErrorContext(r.Context(), "outcome subscription ended", "program", desc, "error", err)
					fmt.Fprintf(w, "event: error\ndata: {\"error\": \"subscription failed\"}\n\n")
					flusher.Flush()
				}
				return

			case <-r.Context().Done():
				logger.DebugContext(r.Context(), "SSE client disconnected",
					"program", desc,
					"remote_addr", r.RemoteAddr,
				)
				return
			}
		}
	})
}
