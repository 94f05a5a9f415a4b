package bridge

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the timeout for writing one message to a client.
	writeWait = 10 * time.Second

	// pongWait is how long a client may stay silent before it is dropped.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds what clients may send; they only send control
	// frames.
	maxMessageSize = 512
)

// statusType is the type of the snapshot sent when a client connects.
const statusType = "status"

// handleEvents streams notifications to a WebSocket client. The first message
// is the current status; every message is a JSON object with a "type" field.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.closed:
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("WebSocket upgrade failed", "error", err)
		return
	}

	s.connections.Add(1)
	defer s.connections.Done()
	defer conn.Close() //nolint:errcheck

	msgs, unsubscribe := s.transport.Subscribe(tts.DefaultSubscriberBuffer)
	defer unsubscribe()

	s.log.Debug("Event client connected", "remote", r.RemoteAddr)
	defer s.log.Debug("Event client disconnected", "remote", r.RemoteAddr)

	// Reading is only needed to process pongs and notice the client going
	// away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(maxMessageSize)
		conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeEvent(conn, statusType, s.transport.Status()); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case <-s.closed:
			conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if err := writeNotification(conn, msg); err != nil {
				s.log.Debug("Failed to send event", "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeNotification(conn *websocket.Conn, msg tea.Msg) error {
	kind := tts.MessageType(msg)
	if kind == "" {
		return nil
	}
	return writeEvent(conn, kind, msg)
}

func writeEvent(conn *websocket.Conn, kind string, payload any) error {
	data, err := EncodeEvent(kind, payload)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
	return conn.WriteMessage(websocket.TextMessage, data)
}

// EncodeEvent flattens payload into a JSON object and adds a "type" field.
func EncodeEvent(kind string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", kind, err)
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode %s event: %w", kind, err)
	}
	typ, _ := json.Marshal(kind)
	fields["type"] = typ
	return json.Marshal(fields)
}

// Event is a decoded notification received from the bridge.
type Event struct {
	Type string `json:"type"`

	// stateChanged and status
	State    string `json:"state,omitempty"`
	Index    int    `json:"index"`
	Total    int    `json:"total"`
	InFlight bool   `json:"inFlight"`
	Text     string `json:"text,omitempty"`

	// error
	Reason string `json:"reason,omitempty"`
	Fatal  bool   `json:"fatal,omitempty"`
}
