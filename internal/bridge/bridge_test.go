package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/history"
	"github.com/dgnsrekt/readaloud/internal/settings"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/engines/mock"
	"github.com/google/uuid"
)

const waitTimeout = 2 * time.Second

var pipeSegmenter = tts.SegmenterFunc(func(text string) []tts.Segment {
	var segments []tts.Segment
	for _, part := range strings.Split(text, "|") {
		if part = strings.TrimSpace(part); part != "" {
			segments = append(segments, tts.Segment{Kind: tts.KindSentence, Text: part})
		}
	}
	return segments
})

// fakeReader serves fixed texts by source name.
type fakeReader map[string]string

func (f fakeReader) Extract(_ context.Context, source string) (string, error) {
	text, ok := f[source]
	if !ok {
		return "", tts.ErrUnsupportedSource
	}
	return text, nil
}

type fixture struct {
	engine    *mock.Engine
	transport *tts.Transport
	server    *Server
	http      *httptest.Server
	client    *Client
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	engine := mock.New()
	engine.SetBlocking(true)
	controller := tts.NewController(engine, pipeSegmenter, tts.ControllerConfig{
		BatchSize: 1,
		Logger:    log.New(io.Discard),
	})
	transport := tts.NewTransport(controller)

	if opts.Voices == nil {
		opts.Voices = engine
	}
	opts.Logger = log.New(io.Discard)
	server := NewServer(transport, opts)
	ts := httptest.NewServer(server.Handler())

	t.Cleanup(func() {
		server.closeStreams()
		ts.Close()
		controller.Shutdown(context.Background()) //nolint:errcheck
	})

	return &fixture{
		engine:    engine,
		transport: transport,
		server:    server,
		http:      ts,
		client:    NewClient(ts.URL),
	}
}

func waitStarted(t *testing.T, engine *mock.Engine, want string) {
	t.Helper()
	timeout := time.After(waitTimeout)
	for {
		select {
		case got := <-engine.Started():
			if got == want {
				return
			}
		case <-timeout:
			t.Fatalf("Timed out waiting for a call speaking %q", want)
		}
	}
}

func TestSpeakAndControl(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	resp, err := f.client.Speak(ctx, SpeakRequest{Text: "one|two|three"})
	if err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	if resp.Segments != 3 {
		t.Errorf("Expected 3 segments, got %d", resp.Segments)
	}
	if _, err := uuid.Parse(resp.Session); err != nil {
		t.Errorf("Expected a UUID session id, got %q", resp.Session)
	}
	waitStarted(t, f.engine, "one")

	status, err := f.client.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.State.State != tts.StatePlaying || status.Session != resp.Session {
		t.Errorf("Expected playing in session %s, got %+v", resp.Session, status)
	}

	steps := []struct {
		action string
		n      int
		want   bool
	}{
		{"pause", 0, true},
		{"pause", 0, false},
		{"resume", 0, true},
		{"forward", 1, true},
		{"rewind", 5, true},
		{"replay", 0, true},
		{"stop", 0, true},
		{"forward", 1, false},
	}
	for _, step := range steps {
		ok, err := f.client.Control(ctx, step.action, step.n)
		if err != nil {
			t.Fatalf("%s failed: %v", step.action, err)
		}
		if ok != step.want {
			t.Errorf("%s: expected %v, got %v", step.action, step.want, ok)
		}
	}

	status, _ = f.client.Status(ctx)
	if status.State.State != tts.StateStopped || status.Session != "" {
		t.Errorf("Expected stopped without a session, got %+v", status)
	}
}

func TestControlErrors(t *testing.T) {
	f := newFixture(t, Options{})

	if _, err := f.client.Control(context.Background(), "explode", 0); err == nil ||
		!strings.Contains(err.Error(), tts.ErrInvalidOperation.Error()) {
		t.Errorf("Expected an invalid operation error, got %v", err)
	}

	resp, err := http.Post(f.http.URL+"/control/forward?n=abc", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad count, got %d", resp.StatusCode)
	}
}

func TestSpeakErrors(t *testing.T) {
	f := newFixture(t, Options{Reader: fakeReader{}})
	ctx := context.Background()

	tests := []struct {
		name string
		req  SpeakRequest
		want string
	}{
		{"empty text", SpeakRequest{Text: "   "}, tts.ErrEmptyContent.Error()},
		{"both text and source", SpeakRequest{Text: "a", Source: "b"}, "either text or source"},
		{"unknown source", SpeakRequest{Source: "nowhere.xyz"}, tts.ErrUnsupportedSource.Error()},
		{"unknown voice", SpeakRequest{Text: "a", Voice: "zzz"}, tts.ErrVoiceNotFound.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.client.Speak(ctx, tt.req)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	if f.engine.CallCount() != 0 {
		t.Errorf("Expected no synthesis calls, got %d", f.engine.CallCount())
	}
}

func TestSpeakResolvesVoice(t *testing.T) {
	f := newFixture(t, Options{})

	if _, err := f.client.Speak(context.Background(), SpeakRequest{Text: "hello", Voice: "mock voice uk"}); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	waitStarted(t, f.engine, "hello")

	calls := f.engine.Calls()
	if len(calls) == 0 || calls[0].Voice != "Mock Voice UK" {
		t.Errorf("Expected the resolved voice name, got %+v", calls)
	}
}

func TestSpeakSourceRecordsHistory(t *testing.T) {
	store, err := history.Open(context.Background(), filepath.Join(t.TempDir(), history.FileName), log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close() //nolint:errcheck

	f := newFixture(t, Options{
		Reader:  fakeReader{"story.txt": "first|second|third"},
		History: store,
	})
	ctx := context.Background()

	if _, err := f.client.Speak(ctx, SpeakRequest{Source: "story.txt", Start: 1}); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	waitStarted(t, f.engine, "second")

	deadline := time.Now().Add(waitTimeout)
	for {
		entry, err := store.Get(ctx, "story.txt")
		if err == nil && entry.Position == 1 && entry.Total == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected position 1 of 3 to be recorded, got %+v (%v)", entry, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestVoices(t *testing.T) {
	f := newFixture(t, Options{})

	voices, err := f.client.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices failed: %v", err)
	}
	if len(voices) != 3 {
		t.Errorf("Expected 3 voices, got %d", len(voices))
	}
}

func TestSettingsRoutes(t *testing.T) {
	store := settings.NewStore(t.TempDir())
	f := newFixture(t, Options{Settings: store})

	put := func(body string) int {
		req, _ := http.NewRequest(http.MethodPut, f.http.URL+"/settings", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close() //nolint:errcheck
		return resp.StatusCode
	}

	if code := put(`{"defaultVoice":"Mock Voice","rate":1.5,"theme":"dark"}`); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if code := put(`{"rate":9}`); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an invalid rate, got %d", code)
	}
	if code := put(`{"colour":"red"}`); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown field, got %d", code)
	}

	resp, err := http.Get(f.http.URL + "/settings")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var got settings.Settings
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	want := settings.Settings{DefaultVoice: "Mock Voice", Rate: 1.5, Theme: settings.ThemeDark}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func TestSettingsUnavailable(t *testing.T) {
	f := newFixture(t, Options{})

	resp, err := http.Get(f.http.URL + "/settings")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func nextEvent(t *testing.T, events <-chan Event, typ string) Event {
	t.Helper()
	timeout := time.After(waitTimeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("Event stream closed while waiting for %q", typ)
			}
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("Timed out waiting for a %q event", typ)
		}
	}
}

func TestWatchEvents(t *testing.T) {
	f := newFixture(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := f.client.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	first := nextEvent(t, events, statusType)
	if first.State != "stopped" {
		t.Errorf("Expected an initial stopped status, got %+v", first)
	}

	f.engine.FailOn("bad", tts.ErrSynthesisFailed)
	f.engine.SetBlocking(false)
	f.engine.SetDelay(time.Millisecond)
	if _, err := f.client.Speak(ctx, SpeakRequest{Text: "good|bad|fine"}); err != nil {
		t.Fatal(err)
	}

	playing := nextEvent(t, events, "stateChanged")
	if playing.State != "playing" || playing.Total != 3 {
		t.Errorf("Expected playing with 3 segments, got %+v", playing)
	}
	failed := nextEvent(t, events, "error")
	if failed.Index != 1 || failed.Reason == "" {
		t.Errorf("Expected a skipped segment at index 1, got %+v", failed)
	}
	finished := nextEvent(t, events, "finished")
	if finished.Total != 3 {
		t.Errorf("Expected finished with 3 segments, got %+v", finished)
	}

	cancel()
	for range events {
	}
}

func TestShutdownClosesStreams(t *testing.T) {
	engine := mock.New()
	controller := tts.NewController(engine, pipeSegmenter, tts.ControllerConfig{Logger: log.New(io.Discard)})
	defer controller.Shutdown(context.Background()) //nolint:errcheck
	server := NewServer(tts.NewTransport(controller), Options{Logger: log.New(io.Discard)})

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	served := make(chan error, 1)
	go func() { served <- server.Serve(l) }()

	client := NewClient(l.Addr().String())
	events, err := client.Watch(context.Background())
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	nextEvent(t, events, statusType)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := <-served; err != nil {
		t.Errorf("Serve returned %v", err)
	}

	select {
	case _, ok := <-events:
		for ok {
			_, ok = <-events
		}
	case <-time.After(waitTimeout):
		t.Fatal("Event stream stayed open after shutdown")
	}

	if _, err := client.Status(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning after shutdown, got %v", err)
	}
}

func TestEncodeEvent(t *testing.T) {
	data, err := EncodeEvent(tts.MessageType(tts.FinishedMsg{}), tts.FinishedMsg{Total: 7})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "finished" || ev.Total != 7 {
		t.Errorf("Expected a finished event with total 7, got %s", data)
	}
}

func TestCheckOrigin(t *testing.T) {
	for origin, want := range map[string]bool{
		"":                      true,
		"http://localhost:3000": true,
		"http://127.0.0.1:7457": true,
		"https://evil.example":  false,
	} {
		r := httptest.NewRequest(http.MethodGet, "/events", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		if got := checkOrigin(r); got != want {
			t.Errorf("checkOrigin(%q): expected %v, got %v", origin, want, got)
		}
	}
}
