package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brattlof/userview/internal/app/render"
)

// LiveMessage is pushed to connected pages when rows are added to the table.
type LiveMessage struct {
	Type string `json:"type"`
	HTML string `json:"html,omitempty"`
}

const (
	defaultPongWait = 60 * time.Second
	writeWait       = 10 * time.Second
)

// LiveHub mirrors table appends to every connected page over a websocket.
// Idle pages are kept alive by pings sent well inside pongWait.
type LiveHub struct {
	upgrader   websocket.Upgrader
	clients    map[*websocket.Conn]struct{}
	mu         sync.RWMutex
	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewLiveHub() *LiveHub {
	h := &LiveHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
	h.setPongWait(defaultPongWait)
	return h
}

func (h *LiveHub) setPongWait(d time.Duration) {
	h.pongWait = d
	h.pingPeriod = d * 9 / 10
}

func (h *LiveHub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Debug("Live websocket upgrade failed", "error", err)
			return
		}

		h.register(conn)
		defer h.unregister(conn)

		stop := make(chan struct{})
		defer close(stop)
		go h.pingLoop(conn, stop)

		h.readPump(conn)
	}
}

func (h *LiveHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *LiveHub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	slog.Debug("Live client connected", "total", total)
}

func (h *LiveHub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	total := len(h.clients)
	h.mu.Unlock()
	conn.Close()
	if ok {
		slog.Debug("Live client disconnected", "total", total)
	}
}

// readPump drains the connection until the page goes away. Pages never send
// anything meaningful.
func (h *LiveHub) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("Live read error", "error", err)
			}
			return
		}
	}
}

// pingLoop pings conn until stop closes or a ping fails. WriteControl may run
// alongside Broadcast's writes.
func (h *LiveHub) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				slog.Debug("Live ping failed", "error", err)
				return
			}
		}
	}
}

func (h *LiveHub) Broadcast(msg LiveMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal live message", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) == 0 {
		return
	}

	slog.Debug("Broadcasting live message", "type", msg.Type, "clients", len(h.clients))

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Debug("Failed to send live message", "error", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Publish renders the changed rows and broadcasts them. It is meant to be
// registered with render.Table.OnAppend.
func (h *LiveHub) Publish(c render.Change) {
	html, err := render.String(context.Background(), render.RowsComponent(c.Rows))
	if err != nil {
		slog.Error("Failed to render live rows", "error", err)
		return
	}

	msgType := "append"
	if c.Replace {
		msgType = "replace"
	}
	h.Broadcast(LiveMessage{Type: msgType, HTML: html})
}

func (h *LiveHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
}
