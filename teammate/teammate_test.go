package teammate

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kaiho/agentkernel/bus"
	"github.com/kaiho/agentkernel/llm"
	"github.com/kaiho/agentkernel/taskboard"
)

type noopDispatcher struct{}

func (noopDispatcher) Execute(ctx context.Context, toolName string, input []byte) string {
	return "ok"
}

func (noopDispatcher) Definitions() []llm.ToolSchema { return nil }

// idleThenQuietClient calls idle on its first round, then Converse is not
// expected to be called again within the work phase.
type idleThenQuietClient struct{ calls int }

func (c *idleThenQuietClient) Converse(ctx context.Context, system string, messages []llm.Message, tools []llm.ToolSchema, maxTokens int) (*llm.Response, error) {
	c.calls++
	return &llm.Response{Content: []llm.Block{llm.ToolUseBlock("1", "idle", json.RawMessage(`{}`))}}, nil
}

func TestSpawnRejectsWhileWorking(t *testing.T) {
	dir := t.TempDir()
	b := bus.New(dir + "/inbox")
	board := taskboard.New(dir + "/tasks")
	client := &blockingClient{}
	m := New("team", dir, b, board, client, noopDispatcher{})

	if err := m.Spawn(context.Background(), "w", "analyst", "wait", ""); err != nil {
		t.Fatalf("first spawn: %v", err)
	}
	// Give the goroutine a moment to set status=working.
	time.Sleep(20 * time.Millisecond)
	if err := m.Spawn(context.Background(), "w", "analyst", "again", ""); err == nil {
		t.Fatal("expected second spawn to be rejected while working")
	}
}

// blockingClient never returns, used only to keep a teammate in "working"
// for the duration of TestSpawnRejectsWhileWorking.
type blockingClient struct{}

func (blockingClient) Converse(ctx context.Context, system string, messages []llm.Message, tools []llm.ToolSchema, maxTokens int) (*llm.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestShutdownRequestUnknownTeammate(t *testing.T) {
	dir := t.TempDir()
	b := bus.New(dir + "/inbox")
	board := taskboard.New(dir + "/tasks")
	m := New("team", dir, b, board, &blockingClient{}, noopDispatcher{})

	if _, err := m.ShutdownRequest("ghost"); err == nil {
		t.Fatal("expected error for unknown teammate")
	}
}

func TestPlanApprovalUnknownRequest(t *testing.T) {
	dir := t.TempDir()
	b := bus.New(dir + "/inbox")
	board := taskboard.New(dir + "/tasks")
	m := New("team", dir, b, board, &blockingClient{}, noopDispatcher{})

	if err := m.PlanApproval("nope", true, ""); err == nil {
		t.Fatal("expected error for unknown request id")
	}
}

func TestMembersReflectsSpawnedTeammate(t *testing.T) {
	dir := t.TempDir()
	b := bus.New(dir + "/inbox")
	board := taskboard.New(dir + "/tasks")
	m := New("team", dir, b, board, &idleThenQuietClient{}, noopDispatcher{})

	if err := m.Spawn(context.Background(), "w", "analyst", "wait", ""); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	members := m.Members()
	if len(members) != 1 || members[0].Name != "w" {
		t.Fatalf("expected one member 'w', got %+v", members)
	}
}
