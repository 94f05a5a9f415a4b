// Package bridge exposes the transport over local HTTP so a GUI or a second
// readaloud process can drive playback. Notifications are streamed over a
// WebSocket.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/history"
	"github.com/dgnsrekt/readaloud/internal/settings"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DefaultAddr is the address the bridge listens on unless configured.
const DefaultAddr = "127.0.0.1:7457"

// maxBodyBytes bounds request bodies; text sent for speaking can be long.
const maxBodyBytes = 8 << 20

// Extractor turns a source (path or URL) into plain text.
type Extractor interface {
	Extract(ctx context.Context, source string) (string, error)
}

// Options configures the bridge server.
type Options struct {
	Voices   tts.VoiceLister // Optional
	Reader   Extractor       // Required for speak requests with a source
	Settings *settings.Store // Optional; /settings answers 404 without it
	History  *history.Store  // Optional; progress of sources is recorded
	Voice    string          // Voice used when a request names none
	Logger   *log.Logger
}

// SpeakRequest is the body of POST /speak. Exactly one of Text and Source is
// set.
type SpeakRequest struct {
	Text   string `json:"text,omitempty"`
	Source string `json:"source,omitempty"`
	Voice  string `json:"voice,omitempty"`
	Start  int    `json:"start,omitempty"`
}

// SpeakResponse answers a speak request.
type SpeakResponse struct {
	Session  string `json:"session"`
	Segments int    `json:"segments"`
}

// ControlResponse answers a control request.
type ControlResponse struct {
	OK bool `json:"ok"`
}

// StatusResponse answers GET /status.
type StatusResponse struct {
	tts.State
	Session string `json:"session,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server serves the bridge API.
type Server struct {
	transport *tts.Transport
	opts      Options
	log       *log.Logger
	upgrader  websocket.Upgrader
	router    chi.Router

	mu          sync.Mutex
	session     string
	stopTrack   context.CancelFunc
	httpServer  *http.Server
	closed      chan struct{}
	closeOnce   sync.Once
	connections sync.WaitGroup
}

// NewServer creates a bridge over transport.
func NewServer(transport *tts.Transport, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default().WithPrefix("bridge")
	}

	s := &Server{
		transport: transport,
		opts:      opts,
		log:       opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		closed: make(chan struct{}),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/voices", s.handleVoices)
	r.Post("/speak", s.handleSpeak)
	r.Post("/control/{action}", s.handleControl)
	r.Get("/status", s.handleStatus)
	r.Get("/settings", s.handleGetSettings)
	r.Put("/settings", s.handlePutSettings)
	r.Get("/events", s.handleEvents)
	return r
}

// Handler returns the bridge's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.log.Info("Bridge listening", "addr", l.Addr().String())
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("bridge: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and serves until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	return s.Serve(l)
}

// Name implements lifecycle.Component.
func (s *Server) Name() string {
	return "Bridge Server"
}

// Shutdown stops accepting requests, closes event streams and waits for
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeStreams()

	s.mu.Lock()
	srv := s.httpServer
	if s.stopTrack != nil {
		s.stopTrack()
	}
	s.mu.Unlock()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("bridge shutdown: %w", err)
		}
	}

	waited := make(chan struct{})
	go func() {
		s.connections.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ForceStop closes the listener and every connection.
func (s *Server) ForceStop() error {
	s.closeStreams()

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Close()
}

func (s *Server) closeStreams() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	if s.opts.Voices == nil {
		writeJSON(w, http.StatusOK, []tts.Voice{})
		return
	}

	voices, err := s.opts.Voices.Voices(r.Context())
	if err != nil {
		s.log.Warn("Failed to list voices", "error", err)
		writeError(w, statusFor(err), err)
		return
	}
	if voices == nil {
		voices = []tts.Voice{}
	}
	writeJSON(w, http.StatusOK, voices)
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req SpeakRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	text := req.Text
	switch {
	case strings.TrimSpace(req.Source) != "" && text != "":
		writeError(w, http.StatusBadRequest, errors.New("set either text or source, not both"))
		return
	case strings.TrimSpace(req.Source) != "":
		if s.opts.Reader == nil {
			writeError(w, http.StatusNotImplemented, tts.ErrUnsupportedSource)
			return
		}
		extracted, err := s.opts.Reader.Extract(r.Context(), req.Source)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		text = extracted
	}
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusUnprocessableEntity, tts.ErrEmptyContent)
		return
	}

	voice, err := s.resolveVoice(r.Context(), req.Voice)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	session := uuid.NewString()
	s.mu.Lock()
	if s.stopTrack != nil {
		s.stopTrack()
		s.stopTrack = nil
	}
	s.session = session
	if s.opts.History != nil && req.Source != "" {
		s.stopTrack = s.track(req.Source)
	}
	s.mu.Unlock()

	segments := s.transport.StartAt(text, voice, req.Start)
	if segments == 0 {
		s.mu.Lock()
		if s.stopTrack != nil {
			s.stopTrack()
			s.stopTrack = nil
		}
		s.mu.Unlock()
		writeError(w, http.StatusUnprocessableEntity, tts.ErrEmptyContent)
		return
	}

	s.log.Info("Speaking", "session", session, "segments", segments, "source", req.Source)
	writeJSON(w, http.StatusAccepted, SpeakResponse{Session: session, Segments: segments})
}

// track records the progress of source until the returned function is
// called.
func (s *Server) track(source string) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	msgs, unsubscribe := s.transport.Subscribe(tts.DefaultSubscriberBuffer)
	go func() {
		defer unsubscribe()
		s.opts.History.Track(ctx, source, msgs)
	}()
	return cancel
}

func (s *Server) resolveVoice(ctx context.Context, query string) (string, error) {
	if query == "" {
		query = s.opts.Voice
	}
	if query == "" || s.opts.Voices == nil {
		return query, nil
	}

	voices, err := s.opts.Voices.Voices(ctx)
	if err != nil {
		// Let the engine decide whether the name is valid.
		s.log.Debug("Voice listing unavailable", "error", err)
		return query, nil
	}
	voice, err := tts.ResolveVoice(query, voices)
	if err != nil {
		return "", err
	}
	return voice.Name, nil
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")

	n := 1
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid count %q", raw))
			return
		}
		n = parsed
	}

	ok, err := s.transport.Control(action, n)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", err, action))
		return
	}
	writeJSON(w, http.StatusOK, ControlResponse{OK: ok})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.transport.Status()
	resp := StatusResponse{State: st}
	if st.IsActive() {
		s.mu.Lock()
		resp.Session = s.session
		s.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if s.opts.Settings == nil {
		writeError(w, http.StatusNotFound, errors.New("settings are not available"))
		return
	}
	current, err := s.opts.Settings.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	if s.opts.Settings == nil {
		writeError(w, http.StatusNotFound, errors.New("settings are not available"))
		return
	}

	var next settings.Settings
	if err := decodeJSON(w, r, &next); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.opts.Settings.Save(next); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"id", chimiddleware.GetReqID(r.Context()))
	})
}

// checkOrigin accepts clients without an Origin header, such as the CLI, and
// pages served from the loopback interface.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, prefix := range []string{"http://127.0.0.1", "http://localhost", "file://", "app://"} {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tts.ErrInvalidConfig),
		errors.Is(err, tts.ErrUnknownEngine),
		errors.Is(err, tts.ErrInvalidOperation):
		return http.StatusBadRequest
	case errors.Is(err, tts.ErrVoiceNotFound), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, tts.ErrEmptyContent),
		errors.Is(err, tts.ErrUnsupportedSource):
		return http.StatusUnprocessableEntity
	case errors.Is(err, tts.ErrEngineUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
