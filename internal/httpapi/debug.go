package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const streamWriteTimeout = 5 * time.Second

func (s *Server) handleDebugEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": s.deps.Sink.Enabled(),
		"events":  s.deps.Sink.Events(),
	})
}

func (s *Server) handleDebugClear(w http.ResponseWriter, r *http.Request) {
	s.deps.Sink.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// handleDebugStream sends every new debug event to the client as a JSON
// text message until either side goes away.
func (s *Server) handleDebugStream(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the upgrade so no event between accept and the first
	// read is missed.
	events, cancel := s.deps.Sink.Subscribe(64)
	defer cancel()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.deps.Logger.Warn("debug stream upgrade failed", "error", err)
		return
	}
	defer conn.CloseNow()

	// The stream is write-only; CloseRead handles control frames and
	// cancels ctx when the client disconnects.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "debug sink closed")
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				s.deps.Logger.Debug("debug stream write failed", "error", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
