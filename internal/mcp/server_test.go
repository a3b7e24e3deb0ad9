package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kokistudios/vulnlife/internal/completion"
)

const report = "# Log4Shell\n\n## 1. 基本信息\n\n| 字段 | 内容 |\n| --- | --- |\n| 漏洞编号 | CVE-2021-44228 |\n\n## 2. 漏洞引入\n\n- **引入时间**：2013-09-14\n\nJNDI lookup added.\n\n## 6. 漏洞公开\n\n- **公开时间**：2021-12-09\n\nAdvisory published.\n"

func clientSession(t *testing.T, srv *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	ct, st := mcp.NewInMemoryTransports()

	ss, err := srv.server.Connect(ctx, st, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func call(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool %s: %v", name, err)
	}
	if out != nil && !res.IsError {
		raw, err := json.Marshal(res.StructuredContent)
		if err != nil {
			t.Fatalf("marshal StructuredContent: %v", err)
		}
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("unmarshal %s output: %v", name, err)
		}
	}
	return res
}

func writeReport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log4shell.md")
	if err := os.WriteFile(path, []byte(report), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTools(t *testing.T) {
	cs := clientSession(t, NewServer(nil, "test"))
	path := writeReport(t)

	var stages StagesResult
	if res := call(t, cs, "vuln_stages", map[string]any{"path": path}, &stages); res.IsError {
		t.Fatalf("vuln_stages error: %v", res.Content)
	}
	if stages.Title != "Log4Shell" || len(stages.Stages) != 3 {
		t.Errorf("stages = %q, %d", stages.Title, len(stages.Stages))
	}

	var tl TimelineResult
	call(t, cs, "vuln_timeline", map[string]any{"path": path, "order": "basic-info-first"}, &tl)
	if len(tl.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(tl.Nodes))
	}
	if tl.Nodes[0].Stages[0] != "1. 基本信息" {
		t.Errorf("basic info should lead, got %v", tl.Nodes[0].Stages)
	}
	if tl.Nodes[1].Date != "2013-09-14" {
		t.Errorf("second node date = %s", tl.Nodes[1].Date)
	}

	var rep completion.Report
	call(t, cs, "vuln_completion", map[string]any{"path": path}, &rep)
	if len(rep.Stages) != 9 || rep.Overall == 0 {
		t.Errorf("completion = %+v", rep)
	}

	var rendered RenderResult
	call(t, cs, "vuln_render", map[string]any{"path": path, "view": "completion"}, &rendered)
	if rendered.View != "completion" || rendered.HTML == "" {
		t.Errorf("render = %+v", rendered)
	}

	var v ValidateResult
	call(t, cs, "vuln_validate", map[string]any{"path": path}, &v)
	if len(v.Missing) != 6 {
		t.Errorf("expected 6 missing stages, got %d", len(v.Missing))
	}
}

func TestTools_Errors(t *testing.T) {
	cs := clientSession(t, NewServer(nil, "test"))

	if res := call(t, cs, "vuln_stages", map[string]any{"path": ""}, nil); !res.IsError {
		t.Error("expected error for empty path")
	}
	if res := call(t, cs, "vuln_stages", map[string]any{"path": filepath.Join(t.TempDir(), "nope.md")}, nil); !res.IsError {
		t.Error("expected error for missing file")
	}
	if res := call(t, cs, "vuln_render", map[string]any{"path": writeReport(t), "view": "bogus"}, nil); !res.IsError {
		t.Error("expected error for unknown view")
	}
}
