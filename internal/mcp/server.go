package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kokistudios/vulnlife/internal/artifact"
	"github.com/kokistudios/vulnlife/internal/completion"
	"github.com/kokistudios/vulnlife/internal/render"
	"github.com/kokistudios/vulnlife/internal/stage"
	"github.com/kokistudios/vulnlife/internal/store"
	"github.com/kokistudios/vulnlife/internal/timeline"
)

// Server exposes report analysis over MCP. Every tool is read-only and
// takes the path of a report file.
type Server struct {
	store  *store.Store
	server *mcp.Server
}

// NewServer creates a new vulnlife MCP server.
func NewServer(st *store.Store, version string) *Server {
	s := &Server{store: st}

	impl := &mcp.Implementation{
		Name:    "vulnlife",
		Version: version,
	}

	s.server = mcp.NewServer(impl, nil)
	s.registerTools()

	return s
}

// Run starts the MCP server on stdio.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "vuln_stages",
		Description: "Parse a vulnerability lifecycle report into its stages. Returns each '##' section with " +
			"its canonical stage number (1-9, null when unrecognized), the metadata bullets at its top, " +
			"and its sub-headings. Use this first to see what a report covers.",
	}, s.handleStages)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "vuln_timeline",
		Description: "Group a report's stages into time nodes by their earliest parsed date. " +
			"order is 'insertion' (document order, default) or 'basic-info-first'.",
	}, s.handleTimeline)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "vuln_completion",
		Description: "Score how complete a report is: per-stage percentage, per-subsection status and " +
			"the TODO items still open, plus the overall score across all nine stages.",
	}, s.handleCompletion)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "vuln_render",
		Description: "Render one view of a report to HTML. view is one of lifecycle, exploitability, " +
			"intelligence, analysis, completion.",
	}, s.handleRender)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vuln_validate",
		Description: "List the canonical lifecycle stages a report does not cover yet.",
	}, s.handleValidate)
}

func (s *Server) load(path string) (*artifact.Report, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("path is required")
	}
	return artifact.Load(path)
}

func (s *Server) renderer(order string) *render.Renderer {
	cfg := store.DefaultConfig()
	if s.store != nil {
		cfg = s.store.Config
	}
	policy := cfg.Policy()
	if order != "" {
		policy = timeline.ParsePolicy(order)
	}
	return render.New(cfg.Vocab(), policy, nil)
}

// PathArgs is the input shared by every tool.
type PathArgs struct {
	Path string `json:"path" jsonschema:"Path to the markdown report file"`
}

// StagesResult is the output of vuln_stages.
type StagesResult struct {
	Title  string        `json:"title"`
	Stages []stage.Stage `json:"stages"`
}

func (s *Server) handleStages(ctx context.Context, req *mcp.CallToolRequest, args PathArgs) (*mcp.CallToolResult, StagesResult, error) {
	r, err := s.load(args.Path)
	if err != nil {
		return nil, StagesResult{}, err
	}
	return nil, StagesResult{
		Title:  r.Title(),
		Stages: s.renderer("").Stages(r.Body),
	}, nil
}

// TimelineArgs defines input for vuln_timeline.
type TimelineArgs struct {
	Path  string `json:"path" jsonschema:"Path to the markdown report file"`
	Order string `json:"order,omitempty" jsonschema:"Node order: insertion or basic-info-first (optional)"`
}

// TimelineResult is the output of vuln_timeline.
type TimelineResult struct {
	Nodes []TimelineNode `json:"nodes"`
}

// TimelineNode is a compact time node.
type TimelineNode struct {
	Date   string   `json:"date"`
	Dated  bool     `json:"dated"`
	Stages []string `json:"stages"`
}

func (s *Server) handleTimeline(ctx context.Context, req *mcp.CallToolRequest, args TimelineArgs) (*mcp.CallToolResult, TimelineResult, error) {
	r, err := s.load(args.Path)
	if err != nil {
		return nil, TimelineResult{}, err
	}
	out := TimelineResult{Nodes: []TimelineNode{}}
	for _, n := range s.renderer(args.Order).Timeline(r.Body) {
		tn := TimelineNode{Date: n.Label(), Dated: n.Dated}
		for _, ts := range n.Stages {
			tn.Stages = append(tn.Stages, ts.Stage.Title)
		}
		out.Nodes = append(out.Nodes, tn)
	}
	return nil, out, nil
}

func (s *Server) handleCompletion(ctx context.Context, req *mcp.CallToolRequest, args PathArgs) (*mcp.CallToolResult, completion.Report, error) {
	r, err := s.load(args.Path)
	if err != nil {
		return nil, completion.Report{}, err
	}
	return nil, s.renderer("").Completion(r.Body), nil
}

// RenderArgs defines input for vuln_render.
type RenderArgs struct {
	Path string `json:"path" jsonschema:"Path to the markdown report file"`
	View string `json:"view,omitempty" jsonschema:"View to render (default lifecycle)"`
}

// RenderResult is the output of vuln_render.
type RenderResult struct {
	View string `json:"view"`
	HTML string `json:"html"`
}

func (s *Server) handleRender(ctx context.Context, req *mcp.CallToolRequest, args RenderArgs) (*mcp.CallToolResult, RenderResult, error) {
	if args.View == "" {
		args.View = string(render.ViewLifecycle)
	}
	v, err := render.ParseView(args.View)
	if err != nil {
		return nil, RenderResult{}, err
	}
	r, err := s.load(args.Path)
	if err != nil {
		return nil, RenderResult{}, err
	}
	return nil, RenderResult{View: string(v), HTML: s.renderer("").RenderString(v, r.Body)}, nil
}

// ValidateResult is the output of vuln_validate.
type ValidateResult struct {
	Missing []stage.CanonicalStage `json:"missing"`
	Message string                 `json:"message"`
}

func (s *Server) handleValidate(ctx context.Context, req *mcp.CallToolRequest, args PathArgs) (*mcp.CallToolResult, ValidateResult, error) {
	r, err := s.load(args.Path)
	if err != nil {
		return nil, ValidateResult{}, err
	}
	missing := artifact.Validate(r)
	out := ValidateResult{Missing: missing, Message: "all nine stages are present"}
	if len(missing) > 0 {
		out.Message = fmt.Sprintf("%d of %d stages missing", len(missing), stage.Count)
	} else {
		out.Missing = []stage.CanonicalStage{}
	}
	return nil, out, nil
}
