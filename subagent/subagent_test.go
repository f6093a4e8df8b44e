package subagent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kaiho/agentkernel/llm"
)

type fakeDispatcher struct {
	calls []string
}

func (f *fakeDispatcher) Execute(ctx context.Context, toolName string, input []byte) string {
	f.calls = append(f.calls, toolName)
	return "ok: " + toolName
}

func (f *fakeDispatcher) Definitions(agentType string) []llm.ToolSchema {
	return []llm.ToolSchema{{Name: "read_file"}}
}

type scriptedClient struct {
	responses []*llm.Response
	calls     int
}

func (c *scriptedClient) Converse(ctx context.Context, system string, messages []llm.Message, tools []llm.ToolSchema, maxTokens int) (*llm.Response, error) {
	resp := c.responses[c.calls]
	c.calls++
	return resp, nil
}

func TestRunReturnsFinalTextWhenNoToolUse(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		{Content: []llm.Block{llm.TextBlock("done exploring")}},
	}}
	out := Run(context.Background(), client, &fakeDispatcher{}, "", "find the bug", "Explore")
	if out != "done exploring" {
		t.Errorf("got %q", out)
	}
}

func TestRunExecutesToolsAcrossRounds(t *testing.T) {
	input, _ := json.Marshal(map[string]string{"path": "a.go"})
	client := &scriptedClient{responses: []*llm.Response{
		{Content: []llm.Block{llm.ToolUseBlock("t1", "read_file", input)}},
		{Content: []llm.Block{llm.TextBlock("summary text")}},
	}}
	disp := &fakeDispatcher{}
	out := Run(context.Background(), client, disp, "", "explore", "Explore")
	if out != "summary text" {
		t.Errorf("got %q", out)
	}
	if len(disp.calls) != 1 || disp.calls[0] != "read_file" {
		t.Errorf("expected read_file to be dispatched, got %v", disp.calls)
	}
}

func TestRunReturnsNoSummaryWhenEmpty(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		{Content: []llm.Block{}},
	}}
	out := Run(context.Background(), client, &fakeDispatcher{}, "", "explore", "Explore")
	if out != NoSummary {
		t.Errorf("got %q, want %q", out, NoSummary)
	}
}
