package kernel

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kaiho/agentkernel/background"
	"github.com/kaiho/agentkernel/bus"
	"github.com/kaiho/agentkernel/llm"
	"github.com/kaiho/agentkernel/skills"
	"github.com/kaiho/agentkernel/taskboard"
	"github.com/kaiho/agentkernel/todo"
)

// scriptedClient replays a fixed response sequence, returning a final
// "done" text turn once the script is exhausted.
type scriptedClient struct {
	responses []*llm.Response
	calls     int32
}

func (c *scriptedClient) Converse(ctx context.Context, system string, messages []llm.Message, tools []llm.ToolSchema, maxTokens int) (*llm.Response, error) {
	idx := int(atomic.AddInt32(&c.calls, 1)) - 1
	if idx >= len(c.responses) {
		return &llm.Response{Content: []llm.Block{llm.TextBlock("done")}, StopReason: "end_turn"}, nil
	}
	return c.responses[idx], nil
}

func newTestKernel(t *testing.T, client llm.Client) *Kernel {
	t.Helper()
	dir := t.TempDir()
	return NewKernel(Config{
		Name:       "lead",
		WorkDir:    dir,
		Client:     client,
		Log:        zerolog.Nop(),
		Todo:       todo.New(),
		Board:      taskboard.New(dir + "/.tasks"),
		Bus:        bus.New(dir + "/.team/inbox"),
		Background: background.New(dir),
		Skills:     &skills.Catalog{},
	})
}

func TestConverseReturnsFinalTextWithoutTools(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		{Content: []llm.Block{llm.TextBlock("hi there")}, StopReason: "end_turn"},
	}}
	k := newTestKernel(t, client)

	reply, err := k.Converse(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "hi there" {
		t.Fatalf("expected 'hi there', got %q", reply)
	}
}

func TestConverseDispatchesToolUseThenStops(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		{
			Content:    []llm.Block{llm.ToolUseBlock("1", "ls", json.RawMessage(`{}`))},
			StopReason: "tool_use",
		},
		{Content: []llm.Block{llm.TextBlock("listed the directory")}, StopReason: "end_turn"},
	}}
	k := newTestKernel(t, client)

	reply, err := k.Converse(context.Background(), "list files")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "listed the directory" {
		t.Fatalf("expected final text, got %q", reply)
	}

	var sawToolResult bool
	for _, m := range k.messages {
		for _, b := range m.Blocks {
			if b.Kind == llm.KindToolResult {
				sawToolResult = true
			}
		}
	}
	if !sawToolResult {
		t.Error("expected a tool_result block to be appended after dispatch")
	}
}

func TestConverseUnknownToolReturnsUnknownToolResult(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		{
			Content:    []llm.Block{llm.ToolUseBlock("1", "does_not_exist", json.RawMessage(`{}`))},
			StopReason: "tool_use",
		},
	}}
	k := newTestKernel(t, client)

	if _, err := k.Converse(context.Background(), "do the thing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The tool results are the second-to-last turn: the scripted client's
	// final "done" assistant turn is appended after them.
	results := k.messages[len(k.messages)-2]
	found := false
	for _, b := range results.Blocks {
		if b.Kind == llm.KindToolResult && strings.Contains(b.Content, "Unknown tool") {
			found = true
		}
	}
	if !found {
		t.Error("expected an 'Unknown tool' tool_result for an unregistered tool name")
	}
}

func TestTodoWriteToolUpdatesTrackerSummary(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		{
			Content: []llm.Block{llm.ToolUseBlock("1", "TodoWrite", json.RawMessage(
				`{"items":[{"content":"write tests","activeForm":"writing tests","status":"in_progress"}]}`))},
			StopReason: "tool_use",
		},
		{Content: []llm.Block{llm.TextBlock("ok")}, StopReason: "end_turn"},
	}}
	k := newTestKernel(t, client)

	if _, err := k.Converse(context.Background(), "track this"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(k.Todo.Summary(), "writing tests") {
		t.Errorf("expected tracker to reflect the TodoWrite call, got %q", k.Todo.Summary())
	}
}

func TestRegistryNamesIncludeCoreTools(t *testing.T) {
	k := newTestKernel(t, &scriptedClient{})
	names := k.registry.Names()
	for _, want := range []string{"bash", "read_file", "write_file", "task", "TodoWrite", "task_create", "send_message"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected registered tool %q, names were %v", want, names)
		}
	}
}
