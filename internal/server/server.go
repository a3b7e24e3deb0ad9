// Package server serves the browser editor for a lifecycle report.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/kokistudios/vulnlife/internal/editor"
	"github.com/kokistudios/vulnlife/internal/remote"
	"github.com/kokistudios/vulnlife/internal/render"
	"github.com/kokistudios/vulnlife/internal/store"
)

//go:embed static
var static embed.FS

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Drafts is the draft storage the server exposes.
type Drafts interface {
	SaveDraft(name, text string) error
	LoadDraft(name string) (string, error)
	ListDrafts() ([]store.Draft, error)
}

// GistClient saves and loads documents remotely.
type GistClient interface {
	Save(ctx context.Context, gistID, filename, text string) (remote.Gist, error)
	Load(ctx context.Context, gistID string) (string, error)
}

// Options wires optional collaborators.
type Options struct {
	Drafts       Drafts
	Gist         GistClient
	GistFilename string
}

// Server provides the editor page and its JSON API.
type Server struct {
	echo   *echo.Echo
	ws     *editor.Workspace
	drafts Drafts
	gist   GistClient
	logger *log.Logger
	config *Config

	mu           sync.Mutex
	gistID       string
	gistFilename string
}

// NewServer creates a server for ws.
func NewServer(ws *editor.Workspace, logger *log.Logger, cfg *Config, opts Options) (*Server, error) {
	if ws == nil {
		return nil, fmt.Errorf("workspace cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking")
	}
	if cfg == nil {
		cfg = &Config{Host: "127.0.0.1", Port: 7878}
	}
	if opts.GistFilename == "" {
		opts.GistFilename = "report.md"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Debug("http request",
				"method", c.Request().Method,
				"uri", c.Request().RequestURI,
				"status", c.Response().Status,
				"duration", time.Since(start),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
			return err
		}
	})

	s := &Server{
		echo:         e,
		ws:           ws,
		drafts:       opts.Drafts,
		gist:         opts.Gist,
		logger:       logger,
		config:       cfg,
		gistFilename: opts.GistFilename,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleIndex)
	s.echo.GET("/static/app.css", s.handleAppCSS)
	s.echo.GET("/static/highlight.css", s.handleHighlightCSS)
	s.echo.GET("/health", s.handleHealth)

	api := s.echo.Group("/api")
	api.GET("/document", s.handleGetDocument)
	api.PUT("/document", s.handlePutDocument)
	api.GET("/views/:view", s.handleView)
	api.POST("/state/fold", s.handleFold)
	api.POST("/state/scroll", s.handleScroll)
	api.GET("/stages", s.handleStages)
	api.GET("/timeline", s.handleTimeline)
	api.GET("/completion", s.handleCompletion)
	api.POST("/render", s.handleRender)
	api.POST("/gist", s.handleGistSave)
	api.GET("/gist/:id", s.handleGistLoad)
	api.GET("/drafts", s.handleListDrafts)
	api.GET("/drafts/:name", s.handleGetDraft)
	api.POST("/drafts/:name", s.handleSaveDraft)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting editor server", "addr", s.Addr())
	err := s.echo.Start(s.Addr())
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down editor server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleIndex(c echo.Context) error {
	data, err := static.ReadFile("static/index.html")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "editor page missing")
	}
	return c.HTMLBlob(http.StatusOK, data)
}

func (s *Server) handleAppCSS(c echo.Context) error {
	data, err := static.ReadFile("static/app.css")
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	return c.Blob(http.StatusOK, "text/css; charset=utf-8", data)
}

func (s *Server) handleHighlightCSS(c echo.Context) error {
	h, ok := s.ws.Renderer().Highlighter.(*render.ChromaHighlighter)
	if !ok {
		return c.Blob(http.StatusOK, "text/css; charset=utf-8", nil)
	}
	css, err := h.CSS()
	if err != nil {
		s.logger.Warn("highlight stylesheet failed", "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "stylesheet unavailable")
	}
	return c.Blob(http.StatusOK, "text/css; charset=utf-8", []byte(css))
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version int    `json:"version"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: s.ws.Version()})
}
