package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brattlof/userview/internal/app/config"
	"github.com/brattlof/userview/internal/app/render"
	"github.com/brattlof/userview/internal/client"
)

// Server serves the user list page and turns the page's actions into calls
// against the users service.
type Server struct {
	config  *config.Config
	ctl     *client.Controller
	live    *LiveHub
	mux     *chi.Mux
	version string
	baseCtx context.Context
}

// New builds the server and subscribes live to the controller's table, so
// every appended row reaches connected pages.
func New(cfg *config.Config, ctl *client.Controller, live *LiveHub, version string) *Server {
	ctl.Table().OnAppend(live.Publish)

	return &Server{
		config:  cfg,
		ctl:     ctl,
		live:    live,
		mux:     chi.NewRouter(),
		version: version,
		baseCtx: context.Background(),
	}
}

func (s *Server) SetupMiddlewares() {
	s.mux.Use(middleware.RequestID)
	s.mux.Use(middleware.RealIP)
	s.mux.Use(middleware.Logger)
	s.mux.Use(middleware.Recoverer)
}

func (s *Server) SetupRoutes() {
	table := s.ctl.Table()

	s.mux.Get("/", templ.Handler(render.PageComponent(table)).ServeHTTP)

	s.mux.Get("/rows", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := render.BodyComponent(table.Rows()).Render(r.Context(), w); err != nil {
			slog.Error("Failed to render rows", "error", err)
		}
	})

	s.mux.Get("/count", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{
			"count": table.Count(),
			"rows":  table.Len(),
		})
	})

	s.mux.Post("/actions/add-user", s.handleAddUser)
	s.mux.Post("/actions/get-users", s.handleGetUsers)

	s.mux.Get("/live", s.live.Handler())

	s.mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": s.version,
		})
	})

	s.mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
}

// handleAddUser reads the username field and fires the add request. The
// response never reflects whether the users service accepted it.
func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	s.ctl.RequestAddUser(s.baseCtx, client.StaticField(r.PostForm.Get("username")))
	s.accepted(w, r)
}

func (s *Server) handleGetUsers(w http.ResponseWriter, r *http.Request) {
	s.ctl.RequestUserList(s.baseCtx)
	s.accepted(w, r)
}

func (s *Server) accepted(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": client.StatePending.String()})
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled, then shuts down gracefully and gives
// in-flight users service calls until the shutdown deadline to land. Those calls
// are not cancelled along with ctx.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = context.WithoutCancel(ctx)

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting userview server",
			"addr", s.config.Addr(),
			"upstream", s.config.Upstream.BaseURL,
			"version", s.version,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.live.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	drained := make(chan struct{})
	go func() {
		s.ctl.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		slog.Warn("Exiting with users service calls still in flight")
	}

	slog.Info("Server exited")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}
