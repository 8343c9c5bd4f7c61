// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
)

// EventsPath streams engine events as server-sent events.
const EventsPath = "/api/v1/simulation/events"

// SnapshotEvent is the name of the first frame on every stream.
const SnapshotEvent = "snapshot"

func (s *Server) registerEventRoute() {
	s.router.Get(EventsPath, s.handleEvents)

	// The stream needs the raw ResponseWriter, so it is routed through chi
	// and only described in the OpenAPI document.
	s.api.OpenAPI().AddOperation(&huma.Operation{
		OperationID: "simulation-events",
		Method:      http.MethodGet,
		Path:        EventsPath,
		Summary:     "Stream simulation events via SSE",
		Description: "The first frame is a `snapshot` event carrying the current session. " +
			"Each later frame is named after the event kind and carries the event as JSON.",
		Tags:       []string{"simulation"},
		Parameters: []*huma.Param{{
			Name:        "token",
			In:          "query",
			Description: "Bearer token for clients that cannot set headers (EventSource)",
			Schema:      &huma.Schema{Type: "string"},
		}},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Server-sent event stream",
				Content: map[string]*huma.MediaType{
					"text/event-stream": {
						Schema: &huma.Schema{Type: "string", Description: "Server-sent event stream"},
					},
				},
			},
			"401": {Description: "Missing or invalid token"},
		},
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Subscribe before the snapshot so no event between the two is lost.
	events, cancel := s.cfg.Simulation.Subscribe()
	defer cancel()

	snap, err := s.cfg.Simulation.Snapshot(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "event stream snapshot failed", "error", err)
		http.Error(w, `{"error":"simulation unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	// Long-lived stream; lift any server write deadline.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeFrame(w, uuid.NewString(), SnapshotEvent, snap); err != nil {
		return
	}
	_ = rc.Flush()

	ticker := time.NewTicker(s.cfg.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeFrame(w, ev.ID, string(ev.Kind), ev); err != nil {
				s.log.DebugContext(ctx, "event stream write failed", "error", err)
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
		}
		_ = rc.Flush()
	}
}

func writeFrame(w io.Writer, id, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", id, name, data)
	return err
}

