package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/altay/deepresearch/internal/metrics"
	"github.com/altay/deepresearch/pkg/research"
)

// wsWriteTimeout bounds each websocket write so a stalled peer cannot pin a
// session past the cancellation grace period.
const wsWriteTimeout = 10 * time.Second

// streamer relays committed session events to a caller in sequence order.
// It consumes the channel to completion; the loop guarantees exactly one
// terminal event, always last.
type streamer struct {
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// streamNDJSON writes each event as one JSON line, flushing immediately so
// token deltas reach the caller without waiting for the full turn. Returns
// when the event channel closes or the client goes away.
func (s *streamer) streamNDJSON(w http.ResponseWriter, events <-chan research.Event, cancel func()) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			// Client is gone: cancel the session and drain the rest so the
			// loop goroutine can finish.
			s.logger.Debug().Err(err).Msg("Stream write failed, cancelling session")
			cancel()
			for range events {
			}
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		s.metrics.EventsEmittedTotal.WithLabelValues(ev.Kind).Inc()
	}
}

// streamWebSocket writes each event as one JSON text message. A read pump
// watches for the peer closing the connection and cancels the session.
func (s *streamer) streamWebSocket(conn *websocket.Conn, events <-chan research.Event, cancel func()) {
	go func() {
		// Discard inbound messages; a read error means the peer is gone.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for ev := range events {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			s.logger.Debug().Err(err).Msg("Websocket write failed, cancelling session")
			cancel()
			for range events {
			}
			return
		}
		s.metrics.EventsEmittedTotal.WithLabelValues(ev.Kind).Inc()
	}

	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}
