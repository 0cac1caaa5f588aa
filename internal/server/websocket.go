package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"kis-board/internal/logging"
	"kis-board/internal/stream"
)

// wsClient serialises writes from the request loop and the watch forwarder.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
	log  zerolog.Logger
}

func (c *wsClient) writeText(frame string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (c *wsClient) close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// handleWebSocket answers every text frame with a freshly rendered summary.
// A frame reading "watch" subscribes the connection to scheduled refreshes
// instead.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	connID := uuid.New().String()
	client := &wsClient{conn: conn, log: logging.WithConnection(s.log, connID)}
	client.log.Info().Str("remote", r.RemoteAddr).Msg("WebSocket client connected")

	// server read/write timeouts do not apply to the upgraded connection
	conn.SetReadDeadline(time.Time{})

	// upstream calls made for this connection log with its id
	ctx, cancel := context.WithCancel(logging.WithLogger(r.Context(), client.log))
	defer cancel()

	watching := false
	defer func() {
		if watching {
			s.deps.Hub.Unsubscribe(connID)
		}
		client.log.Info().Msg("WebSocket client disconnected")
	}()

	// The reader cancels ctx when the client goes away, which aborts a
	// refresh in flight.
	requests := make(chan string)
	go func() {
		defer close(requests)
		defer cancel()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					client.log.Warn().Err(err).Msg("WebSocket read failed")
				}
				return
			}
			select {
			case requests <- strings.TrimSpace(string(msg)):
			case <-ctx.Done():
				return
			}
		}
	}()

	for msg := range requests {
		if msg == "watch" && s.deps.Hub != nil {
			if !watching {
				watching = true
				go s.forward(client, s.deps.Hub.Subscribe(connID))
			}
			continue
		}

		frame, err := s.refreshFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				client.log.Debug().Err(err).Msg("Refresh abandoned, client gone")
				return
			}
			client.log.Error().Err(err).Msg("Refresh failed, closing connection")
			client.close(websocket.CloseInternalServerErr, "refresh failed")
			return
		}
		if err := client.writeText(frame); err != nil {
			client.log.Warn().Err(err).Msg("WebSocket write failed")
			return
		}
	}
}

func (s *Server) refreshFrame(ctx context.Context) (string, error) {
	v, err := s.deps.Refresher.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return s.deps.HTML.Frame(v)
}

// forward pushes hub updates to a watching client until the subscription
// is closed.
func (s *Server) forward(client *wsClient, updates <-chan stream.Update) {
	for u := range updates {
		if err := client.writeText(u.Frame); err != nil {
			client.log.Warn().Err(err).Uint64("seq", u.Seq).Msg("Dropping watch update")
			return
		}
	}
}
