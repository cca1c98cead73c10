package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"signaldesk/internal/analysis"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 8192
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// streamMessage is one server->client frame on the stream.
type streamMessage struct {
	Type   string           `json:"type"` // report | error
	ID     string           `json:"id,omitempty"`
	Report *analysis.Report `json:"report,omitempty"`
	Error  string           `json:"error,omitempty"`
	Status int              `json:"status,omitempty"`
}

// streamRequest is a run request tagged with a client-chosen id.
type streamRequest struct {
	analysis.Request
	ID string `json:"id,omitempty"`
}

// session serves one WebSocket peer. Requests are run one at a time in the
// order received, so responses come back in request order.
type session struct {
	srv  *server
	conn *websocket.Conn
	send chan []byte
	done chan struct{} // closed when the writer stops
}

func (s *server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}
	conn.EnableWriteCompression(true)

	sess := &session{srv: s, conn: conn, send: make(chan []byte, 16), done: make(chan struct{})}
	slog.Info("stream client connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(context.Background())
	go sess.writePump()
	sess.readPump(ctx)
	cancel()
}

func (c *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *session) readPump(ctx context.Context) {
	defer func() {
		close(c.send)
		slog.Info("stream client disconnected")
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req streamRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			c.reply(streamMessage{Type: "error", Error: "invalid request: " + err.Error(), Status: http.StatusBadRequest})
			continue
		}

		rep, err := c.srv.run(ctx, req.Request)
		if err != nil {
			c.reply(streamMessage{Type: "error", ID: req.ID, Error: err.Error(), Status: statusFor(err)})
		} else {
			c.reply(streamMessage{Type: "report", ID: req.ID, Report: rep})
		}
		// A run can outlast the read deadline.
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (c *session) reply(m streamMessage) {
	b, err := json.Marshal(m)
	if err != nil {
		slog.Error("stream encode failed", "error", err)
		return
	}
	select {
	case c.send <- b:
	case <-c.done:
	}
}
