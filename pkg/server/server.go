// Package server exposes a canvas session over HTTP for live preview:
// JSON endpoints for the toolbar actions, PNG and SVG renders, and a
// WebSocket that pushes the status after every change.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/chazu/koga/pkg/canvas"
	"github.com/chazu/koga/pkg/engine"
	"github.com/gorilla/websocket"
)

// maxScriptBytes caps the body of an execute request.
const maxScriptBytes = 1 << 20

//go:embed static/index.html
var static embed.FS

// Server serves one canvas session.
type Server struct {
	session  *canvas.Session
	log      *slog.Logger
	upgrader websocket.Upgrader
	hub      *hub
	mux      *http.ServeMux
	stop     func()
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New wires handlers for session. Call Close to detach from it.
func New(session *canvas.Session, opts ...Option) *Server {
	s := &Server{
		session: session,
		log:     slog.Default(),
		mux:     http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Any origin may connect.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, o := range opts {
		o(s)
	}
	s.hub = newHub(s.log)
	s.stop = session.Subscribe(func(st canvas.Status) {
		s.hub.broadcast(message{Type: "STATUS", Status: st})
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /api/execute", s.handleExecute)
	s.mux.HandleFunc("GET /api/render.png", s.handleRenderPNG)
	s.mux.HandleFunc("GET /api/render.svg", s.handleRenderSVG)
	s.mux.HandleFunc("GET /api/document", s.handleDocument)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/zoom-in", s.handleZoomIn)
	s.mux.HandleFunc("POST /api/zoom-out", s.handleZoomOut)
	s.mux.HandleFunc("POST /api/reset", s.handleReset)
	s.mux.HandleFunc("POST /api/tool", s.handleTool)
	s.mux.HandleFunc("POST /api/pan", s.handlePan)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("preview server listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close detaches from the session and drops all previews.
func (s *Server) Close() {
	s.stop()
	s.hub.closeAll()
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

// executeResponse is the body returned by POST /api/execute.
type executeResponse struct {
	OK            bool          `json:"ok"`
	Error         string        `json:"error,omitempty"`
	Line          int           `json:"line,omitempty"`
	Notifications []string      `json:"notifications"`
	Appended      int           `json:"appended"`
	Closed        bool          `json:"closed"`
	ElapsedMS     int64         `json:"elapsedMs"`
	Status        canvas.Status `json:"status"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxScriptBytes+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(body) > maxScriptBytes {
		s.writeError(w, http.StatusRequestEntityTooLarge, errors.New("script too large"))
		return
	}

	res, err := s.session.Execute(r.Context(), string(body))
	if errors.Is(err, canvas.ErrBusy) {
		s.writeError(w, http.StatusConflict, err)
		return
	}

	resp := executeResponse{OK: err == nil, Notifications: []string{}}
	if res != nil {
		resp.Notifications = append(resp.Notifications, res.Notifications...)
		resp.Appended = res.Appended
		resp.Closed = res.Closed
		resp.ElapsedMS = res.Elapsed.Milliseconds()
	}
	code := http.StatusOK
	if err != nil {
		code = http.StatusUnprocessableEntity
		resp.Error = err.Error()
		var ee *engine.ExecutionError
		if errors.As(err, &ee) {
			resp.Error = ee.Message
			resp.Line = ee.Line
		}
	}
	resp.Status = s.session.Status()
	s.writeJSON(w, code, resp)
}

func (s *Server) handleRenderPNG(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.session.RenderPNG(w); err != nil {
		s.log.Warn("png render failed", "error", err)
	}
}

func (s *Server) handleRenderSVG(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.session.RenderSVG(w); err != nil {
		s.log.Warn("svg render failed", "error", err)
	}
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"viewport": s.session.Viewport(),
		"children": s.session.Nodes(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.Status())
}

func (s *Server) handleZoomIn(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.ZoomIn())
}

func (s *Server) handleZoomOut(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.ZoomOut())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.Reset())
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	st, err := s.session.SetTool(r.URL.Query().Get("name"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dx, err := strconv.ParseFloat(q.Get("dx"), 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("dx must be a number"))
		return
	}
	dy, err := strconv.ParseFloat(q.Get("dy"), 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("dy must be a number"))
		return
	}
	s.writeJSON(w, http.StatusOK, s.session.Pan(dx, dy))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, static, "static/index.html")
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := s.hub.add(conn)
	defer s.hub.remove(c)

	if err := c.send(message{Type: "HELLO", Client: c.id, Status: s.session.Status()}); err != nil {
		return
	}

	// Clients only ping; anything else is ignored.
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("websocket closed", "client", c.id, "error", err)
			}
			return
		}
		if msg.Type == "PING" {
			if err := c.send(message{Type: "PONG", Client: c.id}); err != nil {
				return
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}
