package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgnsrekt/readaloud/tts"
	"github.com/gorilla/websocket"
)

// ErrNotRunning is returned when no bridge answers at the client's address.
var ErrNotRunning = errors.New("no readaloud server is running")

// Client talks to a running bridge.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the bridge at addr, given as host:port or as
// a URL.
func NewClient(addr string) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{
		base: strings.TrimRight(addr, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// Control sends a transport action. n is the count for forward and rewind.
func (c *Client) Control(ctx context.Context, action string, n int) (bool, error) {
	path := "/control/" + url.PathEscape(action)
	if n > 0 {
		path += "?n=" + strconv.Itoa(n)
	}

	var resp ControlResponse
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.OK, nil
}

// Speak starts playback on the server.
func (c *Client) Speak(ctx context.Context, req SpeakRequest) (SpeakResponse, error) {
	var resp SpeakResponse
	err := c.do(ctx, http.MethodPost, "/speak", req, &resp)
	return resp, err
}

// Status returns the server's playback state.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var resp StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, &resp)
	return resp, err
}

// Voices lists the server engine's voices.
func (c *Client) Voices(ctx context.Context) ([]tts.Voice, error) {
	var voices []tts.Voice
	err := c.do(ctx, http.MethodGet, "/voices", nil, &voices)
	return voices, err
}

// Watch streams the server's notifications until ctx is done or the
// connection drops, then closes the returned channel.
func (c *Client) Watch(ctx context.Context) (<-chan Event, error) {
	u, err := url.Parse(c.base + "/events")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, dialError(err)
	}

	events := make(chan Event, tts.DefaultSubscriberBuffer)
	go func() {
		<-ctx.Done()
		conn.Close() //nolint:errcheck
	}()
	go func() {
		defer close(events)
		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return dialError(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= http.StatusBadRequest {
		var e errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			return fmt.Errorf("bridge: unexpected status %s", resp.Status)
		}
		return fmt.Errorf("bridge: %s", e.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func dialError(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	return err
}
