package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"time"

	"schedview/internal/config"
	"schedview/internal/ics"
	appLog "schedview/internal/log"
	"schedview/internal/render"
	"schedview/internal/schedule"
)

// StateSource yields the current schedule snapshot.
type StateSource interface {
	State() schedule.State
}

// Server serves the schedule page, its JSON/ICS variants and the theme
// toggle. It holds no state besides the snapshot source.
type Server struct {
	cfg       *config.Config
	states    StateSource
	projector render.Projector
	html      render.Renderer
	json      render.Renderer
	location  *time.Location
	mux       *http.ServeMux
}

//go:embed static
var embeddedStatic embed.FS

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, states StateSource) (*Server, error) {
	html, err := render.NewHTMLRenderer()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:    cfg,
		states: states,
		projector: render.Projector{
			Title:  cfg.Title,
			Format: render.NewFormat(cfg.Locale),
		},
		html:     html,
		json:     render.JSONRenderer{},
		location: resolveLocationOrUTC(cfg.Timezone),
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the root handler including request logging.
func (s *Server) Handler() http.Handler {
	return requestLogger(s.mux)
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /api/schedule", s.handleAPISchedule)
	s.mux.HandleFunc("GET /schedule.ics", s.handleICS)
	s.mux.HandleFunc("POST /theme", s.handleTheme)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
	s.mux.Handle("GET /static/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleIndex renders the schedule page.
//
// GET /?room=1&day=2024-05-01&type=talk&type=workshop&q=rust&panel=hidden
//   - every parameter is optional; none at all shows the full schedule
//   - an empty type list means every type
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	theme := themeFromRequest(r, s.cfg.DefaultTheme)
	page, status, err := s.page(r, theme)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	page.Self = r.URL.RequestURI()
	s.write(w, status, s.html, page)
}

// handleAPISchedule returns the same render tree as JSON.
func (s *Server) handleAPISchedule(w http.ResponseWriter, r *http.Request) {
	theme := themeFromRequest(r, s.cfg.DefaultTheme)
	page, status, err := s.page(r, theme)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	s.write(w, status, s.json, page)
}

// handleICS exports the filtered sessions as an iCalendar feed in
// presentation order.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	view, status, err := s.view(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	body := ics.Export(view.Doc, view.Tree.Sessions(), ics.ExportOptions{
		Name:     s.cfg.Title,
		Domain:   hostOnly(r.Host),
		Timezone: s.location.String(),
	})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="schedule.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// handlePreview serves the last captured screenshot from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.PreviewPath)
}

func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static assets not available", http.StatusServiceUnavailable)
		})
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// view parses filter parameters and applies them to the current snapshot.
// The returned status is meaningful only with a non-nil error.
func (s *Server) view(r *http.Request) (schedule.View, int, error) {
	state := s.states.State()
	if !state.Ready() {
		return schedule.View{}, http.StatusServiceUnavailable, errors.New(render.LoadErrorMessage)
	}
	c, err := criteriaFromQuery(r.URL.Query())
	if err != nil {
		return schedule.View{}, http.StatusBadRequest, err
	}
	view, err := state.Apply(c)
	if err != nil {
		return schedule.View{}, http.StatusServiceUnavailable, errors.New(render.LoadErrorMessage)
	}
	return view, http.StatusOK, nil
}

// page builds the render tree. A failed load yields the error page with
// 503 and a nil error; bad filter input yields 400 and an error.
func (s *Server) page(r *http.Request, theme string) (render.Page, int, error) {
	view, status, err := s.view(r)
	switch {
	case err == nil:
		panelHidden := r.URL.Query().Get("panel") == "hidden"
		return s.projector.Page(view, theme, panelHidden), http.StatusOK, nil
	case status == http.StatusServiceUnavailable:
		return s.projector.ErrorPage(theme), status, nil
	default:
		return render.Page{}, status, err
	}
}

// write renders into a buffer first so a template failure never leaves a
// half-written page behind.
func (s *Server) write(w http.ResponseWriter, status int, rr render.Renderer, page render.Page) {
	var buf bytes.Buffer
	if err := rr.Render(&buf, page); err != nil {
		appLog.Error("render failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", rr.ContentType())
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func criteriaFromQuery(q url.Values) (schedule.Criteria, error) {
	return schedule.NewCriteria(q.Get("room"), q.Get("day"), q["type"], q.Get("q"))
}

func resolveLocationOrUTC(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", name)
		return time.UTC
	}
	return loc
}

func hostOnly(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
