package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kokistudios/vulnlife/internal/reconcile"
	"github.com/kokistudios/vulnlife/internal/remote"
	"github.com/kokistudios/vulnlife/internal/render"
	"github.com/kokistudios/vulnlife/internal/stage"
	"github.com/kokistudios/vulnlife/internal/store"
	"github.com/kokistudios/vulnlife/internal/timeline"
)

// DocumentResponse is the response body for GET /api/document.
type DocumentResponse struct {
	Text    string `json:"text"`
	Version int    `json:"version"`
}

// DocumentRequest is the request body for PUT /api/document. Sync skips the
// debounce and renders before responding.
type DocumentRequest struct {
	Text string `json:"text"`
	Sync bool   `json:"sync,omitempty"`
}

// ViewResponse is the response body for GET /api/views/:view.
type ViewResponse struct {
	View    render.View `json:"view"`
	HTML    string      `json:"html"`
	Version int         `json:"version"`
}

// FoldRequest is the request body for POST /api/state/fold. Without a stage
// the whole time node is folded; a negative stage means the same.
type FoldRequest struct {
	Node       int    `json:"node"`
	Stage      *int   `json:"stage,omitempty"`
	Subsection string `json:"subsection,omitempty"`
	Collapsed  bool   `json:"collapsed"`
}

// Target maps the request onto a lifecycle element.
func (r FoldRequest) Target() reconcile.Target {
	t := reconcile.Target{Node: r.Node, Stage: -1, Subsection: r.Subsection}
	if r.Stage != nil {
		t.Stage = *r.Stage
	}
	return t
}

// ScrollRequest is the request body for POST /api/state/scroll.
type ScrollRequest struct {
	View string `json:"view"`
	Top  int    `json:"top"`
}

// RenderRequest is the request body for POST /api/render.
type RenderRequest struct {
	Markdown string `json:"markdown"`
	View     string `json:"view"`
}

// GistRequest is the request body for POST /api/gist. An empty ID creates
// a new gist, or updates the last one saved from this server.
type GistRequest struct {
	ID string `json:"id,omitempty"`
}

// DraftRequest is the optional body for POST /api/drafts/:name. When Text
// is nil the current document is saved.
type DraftRequest struct {
	Text *string `json:"text,omitempty"`
}

func (s *Server) handleGetDocument(c echo.Context) error {
	return c.JSON(http.StatusOK, DocumentResponse{
		Text:    s.ws.Buffer().CurrentText(),
		Version: s.ws.Version(),
	})
}

func (s *Server) handlePutDocument(c echo.Context) error {
	var req DocumentRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid document request", "err", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.ws.Buffer().ReplaceAll(req.Text); err != nil {
		s.logger.Error("document update failed", "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update document")
	}
	status := http.StatusAccepted
	if req.Sync {
		s.ws.Flush()
		status = http.StatusOK
	}
	return c.JSON(status, DocumentResponse{Text: req.Text, Version: s.ws.Version()})
}

func (s *Server) handleView(c echo.Context) error {
	v, err := render.ParseView(c.Param("view"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	body, version := s.ws.Snapshot(v)
	return c.JSON(http.StatusOK, ViewResponse{View: v, HTML: body, Version: version})
}

func (s *Server) handleFold(c echo.Context) error {
	var req FoldRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !s.ws.SetCollapsed(req.Target(), req.Collapsed) {
		return echo.NewHTTPError(http.StatusNotFound, "no such element in the lifecycle view")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleScroll(c echo.Context) error {
	var req ScrollRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v, err := render.ParseView(req.View)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.ws.SetScroll(v, req.Top)
	return c.NoContent(http.StatusNoContent)
}

// StagesResponse is the response body for GET /api/stages.
type StagesResponse struct {
	Title  string        `json:"title"`
	Stages []stage.Stage `json:"stages"`
}

func (s *Server) handleStages(c echo.Context) error {
	return c.JSON(http.StatusOK, StagesResponse{
		Title:  stage.ExtractTitle(s.ws.Buffer().CurrentText()),
		Stages: s.ws.Stages(),
	})
}

func (s *Server) handleTimeline(c echo.Context) error {
	nodes := s.ws.Timeline()
	if nodes == nil {
		nodes = []timeline.Node{}
	}
	return c.JSON(http.StatusOK, nodes)
}

func (s *Server) handleCompletion(c echo.Context) error {
	return c.JSON(http.StatusOK, s.ws.Completion())
}

func (s *Server) handleRender(c echo.Context) error {
	var req RenderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.View == "" {
		req.View = string(render.ViewLifecycle)
	}
	v, err := render.ParseView(req.View)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, ViewResponse{
		View: v,
		HTML: s.ws.Renderer().RenderString(v, req.Markdown),
	})
}

func (s *Server) handleGistSave(c echo.Context) error {
	if s.gist == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "gist sync is not configured")
	}
	var req GistRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	s.mu.Lock()
	id := req.ID
	if id == "" {
		id = s.gistID
	}
	filename := s.gistFilename
	s.mu.Unlock()

	g, err := s.gist.Save(c.Request().Context(), id, filename, s.ws.Buffer().CurrentText())
	if err != nil {
		return s.gistError(err)
	}
	s.mu.Lock()
	s.gistID = g.ID
	s.mu.Unlock()
	s.logger.Info("saved gist", "id", g.ID)
	return c.JSON(http.StatusOK, g)
}

func (s *Server) handleGistLoad(c echo.Context) error {
	if s.gist == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "gist sync is not configured")
	}
	id := c.Param("id")
	text, err := s.gist.Load(c.Request().Context(), id)
	if err != nil {
		return s.gistError(err)
	}
	if err := s.ws.Buffer().ReplaceAll(text); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update document")
	}
	s.ws.Flush()
	s.mu.Lock()
	s.gistID = id
	s.mu.Unlock()
	return c.JSON(http.StatusOK, DocumentResponse{Text: text, Version: s.ws.Version()})
}

func (s *Server) gistError(err error) error {
	switch {
	case errors.Is(err, remote.ErrBusy):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, remote.ErrEmptyGist):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	s.logger.Warn("gist request failed", "err", err)
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}

func (s *Server) handleListDrafts(c echo.Context) error {
	if s.drafts == nil {
		return c.JSON(http.StatusOK, []store.Draft{})
	}
	drafts, err := s.drafts.ListDrafts()
	if err != nil {
		s.logger.Error("list drafts failed", "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list drafts")
	}
	return c.JSON(http.StatusOK, drafts)
}

func (s *Server) handleGetDraft(c echo.Context) error {
	if s.drafts == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "drafts are not configured")
	}
	text, err := s.drafts.LoadDraft(c.Param("name"))
	if errors.Is(err, store.ErrDraftNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read draft")
	}
	return c.JSON(http.StatusOK, DocumentResponse{Text: text})
}

func (s *Server) handleSaveDraft(c echo.Context) error {
	if s.drafts == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "drafts are not configured")
	}
	var req DraftRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}
	text := s.ws.Buffer().CurrentText()
	if req.Text != nil {
		text = *req.Text
	}
	name := strings.TrimSpace(c.Param("name"))
	if err := s.drafts.SaveDraft(name, text); err != nil {
		s.logger.Error("save draft failed", "draft", name, "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save draft")
	}
	return c.JSON(http.StatusOK, map[string]string{"name": store.DraftName(name)})
}
