package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// handleLive pushes alerts from the live feed to a WebSocket peer.
// ?symbol= filters by symbol; ?since=N first replays buffered events with
// a sequence number above N.
func (s *server) handleLive(w http.ResponseWriter, r *http.Request) {
	if s.opts.Live == nil {
		writeError(w, http.StatusNotFound, "live alerts are disabled")
		return
	}
	q := r.URL.Query()
	symbol := q.Get("symbol")
	var since int64
	if raw := q.Get("since"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = n
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// subscribe before replaying so nothing falls between the two
	sub := s.opts.Live.Subscribe(symbol)
	defer s.opts.Live.Unsubscribe(sub)
	slog.Info("live client connected", "remote", r.RemoteAddr, "symbol", symbol, "since", since)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(readLimit)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v any) bool {
		b, err := json.Marshal(v)
		if err != nil {
			slog.Error("live encode failed", "error", err)
			return true
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, b) == nil
	}

	last := since
	if since > 0 {
		for _, ev := range s.opts.Live.Since(since, symbol) {
			if !write(ev) {
				return
			}
			last = ev.Seq
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			slog.Info("live client disconnected", "remote", r.RemoteAddr)
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if ev.Seq <= last {
				continue // already replayed
			}
			if !write(ev) {
				return
			}
			last = ev.Seq
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
