package web

import (
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/eventsource"

	"github.com/liut/parley/pkg/services/chat"
)

const (
	subBuffer  = 64
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// getEvents streams engine events as Server-Sent Events
func (s *server) getEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	ch, cancel := s.bus.Subscribe(subBuffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	logger().Debugw("sse attached", "ip", r.RemoteAddr)

	var idx int
	for {
		select {
		case <-r.Context().Done():
			logger().Debugw("sse detached", "ip", r.RemoteAddr)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			idx++
			if !writeEvent(w, strconv.Itoa(idx), &ev) {
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent write one event, typed by its kind
func writeEvent(w io.Writer, id string, ev *chat.Event) bool {
	b, err := json.Marshal(ev)
	if err != nil {
		logger().Infow("json marshal fail", "kind", ev.Kind, "err", err)
		return false
	}

	if err = eventsource.WriteEvent(w, eventsource.Event{
		ID:   id,
		Type: string(ev.Kind),
		Data: b,
	}); err != nil {
		logger().Infow("eventsource write fail", "err", err)
		return false
	}

	return true
}

func (s *server) upgrader() *websocket.Upgrader {
	origins := s.cfg.AllowOrigins
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(origins) == 0 || slices.Contains(origins, "*") {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(origins, origin)
		},
	}
}

// getSocket streams engine events over a websocket, inbound messages are
// only read for control frames.
func (s *server) getSocket(w http.ResponseWriter, r *http.Request) {
	ch, cancel := s.bus.Subscribe(subBuffer)
	defer cancel()

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		logger().Infow("websocket upgrade fail", "err", err)
		return
	}
	defer conn.Close()
	logger().Debugw("websocket attached", "ip", r.RemoteAddr)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				logger().Debugw("websocket detached", "ip", r.RemoteAddr, "err", err)
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case ev, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(&ev); err != nil {
				logger().Infow("websocket write fail", "kind", ev.Kind, "err", err)
				return
			}
		}
	}
}
