// Coordination tool handlers (spec §6): TodoWrite, task (subagent),
// load_skill, compress, background_run/check_background, the task-board
// tools, and the teammate coordination tools. Grounded on the teacher's
// tools/registry.go registerTaskTools for the shape of write_tasks/
// update_task/read_tasks, generalized onto the todo/taskboard/bus/
// background/teammate packages this kernel wires together (Design
// Notes: "a single injected context... pass that context explicitly").
package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kaiho/agentkernel/bus"
	"github.com/kaiho/agentkernel/subagent"
	"github.com/kaiho/agentkernel/taskboard"
	"github.com/kaiho/agentkernel/todo"
)

func (k *Kernel) registerControlTools() {
	k.registry.register("TodoWrite",
		"Replace the entire todo checklist. At most 20 items, at most one in_progress.",
		json.RawMessage(`{"type":"object","properties":{"items":{"type":"array","items":{"type":"object","properties":{"content":{"type":"string"},"activeForm":{"type":"string"},"status":{"type":"string","enum":["pending","in_progress","completed"]}},"required":["content","activeForm","status"]}}},"required":["items"]}`),
		k.todoWriteTool, tagLeadOnly)

	k.registry.register("task",
		`Delegate a bounded exploration or implementation task to a sub-agent. agent_type "Explore" is read-only; any other value also allows write_file/edit_file.`,
		json.RawMessage(`{"type":"object","properties":{"prompt":{"type":"string"},"agent_type":{"type":"string"}},"required":["prompt","agent_type"]}`),
		k.taskTool)

	k.registry.register("load_skill",
		"Load the full body of a named skill.",
		json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`),
		k.loadSkillTool, tagReadOnly)

	k.registry.register("compress",
		"Force immediate auto-compaction of the conversation.",
		json.RawMessage(`{"type":"object","properties":{}}`),
		k.compressTool)

	k.registry.register("background_run",
		"Run a shell command in the background; returns a job id immediately.",
		json.RawMessage(`{"type":"object","properties":{"command":{"type":"string"},"timeout":{"type":"integer"}},"required":["command"]}`),
		k.backgroundRunTool)

	k.registry.register("check_background",
		"Check a background job's status, or list all jobs when id is omitted.",
		json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}}}`),
		k.checkBackgroundTool, tagReadOnly)

	k.registry.register("task_create",
		"Create a durable task with a subject and description.",
		json.RawMessage(`{"type":"object","properties":{"subject":{"type":"string"},"description":{"type":"string"}},"required":["subject"]}`),
		k.taskCreateTool)

	k.registry.register("task_get",
		"Fetch a single durable task by id.",
		json.RawMessage(`{"type":"object","properties":{"id":{"type":"integer"}},"required":["id"]}`),
		k.taskGetTool, tagReadOnly)

	k.registry.register("task_update",
		"Update a durable task's status and/or dependency edges.",
		json.RawMessage(`{"type":"object","properties":{"id":{"type":"integer"},"status":{"type":"string"},"add_blocked_by":{"type":"array","items":{"type":"integer"}},"add_blocks":{"type":"array","items":{"type":"integer"}}},"required":["id"]}`),
		k.taskUpdateTool)

	k.registry.register("task_list",
		"Render every durable task with status, owner, and blockers.",
		json.RawMessage(`{"type":"object","properties":{}}`),
		k.taskListTool, tagReadOnly)

	k.registry.register("claim_task",
		"Claim a pending, unblocked task by id.",
		json.RawMessage(`{"type":"object","properties":{"id":{"type":"integer"}},"required":["id"]}`),
		k.claimTaskTool, tagScheduler)

	k.registry.register("spawn_teammate",
		"Spawn or reactivate a named, long-lived teammate agent with a role and initial prompt.",
		json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"},"role":{"type":"string"},"prompt":{"type":"string"}},"required":["name","role","prompt"]}`),
		k.spawnTeammateTool, tagLeadOnly)

	k.registry.register("list_teammates",
		"List every known teammate and its current status.",
		json.RawMessage(`{"type":"object","properties":{}}`),
		k.listTeammatesTool, tagReadOnly, tagLeadOnly)

	k.registry.register("send_message",
		"Send a message to another agent via the bus.",
		json.RawMessage(`{"type":"object","properties":{"to":{"type":"string"},"content":{"type":"string"}},"required":["to","content"]}`),
		k.sendMessageTool, tagScheduler)

	k.registry.register("read_inbox",
		"Read and drain this agent's inbox.",
		json.RawMessage(`{"type":"object","properties":{}}`),
		k.readInboxTool)

	k.registry.register("broadcast",
		"Send a message to every known teammate.",
		json.RawMessage(`{"type":"object","properties":{"content":{"type":"string"}},"required":["content"]}`),
		k.broadcastTool, tagScheduler)

	k.registry.register("shutdown_request",
		"Request a teammate shut down at its next inbox drain or idle-poll tick.",
		json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`),
		k.shutdownRequestTool, tagLeadOnly)

	k.registry.register("plan_approval",
		"Approve or reject a teammate's filed plan.",
		json.RawMessage(`{"type":"object","properties":{"request_id":{"type":"string"},"approve":{"type":"boolean"},"feedback":{"type":"string"}},"required":["request_id","approve"]}`),
		k.planApprovalTool, tagLeadOnly)
}

type todoWriteInput struct {
	Items []todo.Item `json:"items"`
}

func (k *Kernel) todoWriteTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[todoWriteInput](input)
	if err != nil {
		return "", err
	}
	k.todoWriteCalledThisRound = true
	if err := k.Todo.Update(params.Items); err != nil {
		return "", err
	}
	return k.Todo.Summary(), nil
}

type taskInput struct {
	Prompt    string `json:"prompt"`
	AgentType string `json:"agent_type"`
}

func (k *Kernel) taskTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[taskInput](input)
	if err != nil {
		return "", err
	}
	if params.Prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}
	disp := &subagentDispatcher{k: k}
	return subagent.Run(ctx, k.Client, disp, k.SubagentSystemPrompt, params.Prompt, params.AgentType), nil
}

type loadSkillInput struct {
	Name string `json:"name"`
}

func (k *Kernel) loadSkillTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[loadSkillInput](input)
	if err != nil {
		return "", err
	}
	return k.Skills.Load(params.Name)
}

func (k *Kernel) compressTool(ctx context.Context, input json.RawMessage) (string, error) {
	k.compressCalledThisRound = true
	return "Compaction scheduled for the end of this round.", nil
}

type backgroundRunInput struct {
	Command string `json:"command"`
	Timeout int    `json:"timeout"`
}

func (k *Kernel) backgroundRunTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[backgroundRunInput](input)
	if err != nil {
		return "", err
	}
	if params.Command == "" {
		return "", fmt.Errorf("command is required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 120
	}
	id := k.Background.Run(params.Command, time.Duration(timeout)*time.Second)
	return fmt.Sprintf("Started background job %s", id), nil
}

type checkBackgroundInput struct {
	ID string `json:"id"`
}

func (k *Kernel) checkBackgroundTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[checkBackgroundInput](input)
	if err != nil {
		return "", err
	}
	return k.Background.Check(params.ID), nil
}

type taskCreateInput struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

func (k *Kernel) taskCreateTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[taskCreateInput](input)
	if err != nil {
		return "", err
	}
	if params.Subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	t, err := k.Board.Create(params.Subject, params.Description)
	if err != nil {
		return "", err
	}
	data, _ := json.Marshal(t)
	return string(data), nil
}

type taskGetInput struct {
	ID int `json:"id"`
}

func (k *Kernel) taskGetTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[taskGetInput](input)
	if err != nil {
		return "", err
	}
	t, err := k.Board.Get(params.ID)
	if err != nil {
		return "", err
	}
	data, _ := json.Marshal(t)
	return string(data), nil
}

type taskUpdateInput struct {
	ID           int      `json:"id"`
	Status       string   `json:"status"`
	AddBlockedBy []int    `json:"add_blocked_by"`
	AddBlocks    []int    `json:"add_blocks"`
}

func (k *Kernel) taskUpdateTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[taskUpdateInput](input)
	if err != nil {
		return "", err
	}
	t, err := k.Board.Update(params.ID, taskboard.UpdateFields{
		Status:       taskboard.Status(params.Status),
		AddBlockedBy: params.AddBlockedBy,
		AddBlocks:    params.AddBlocks,
	})
	if err != nil {
		return "", err
	}
	data, _ := json.Marshal(t)
	return string(data), nil
}

func (k *Kernel) taskListTool(ctx context.Context, input json.RawMessage) (string, error) {
	return k.Board.List()
}

func (k *Kernel) claimTaskTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[taskGetInput](input)
	if err != nil {
		return "", err
	}
	cur, err := k.Board.Get(params.ID)
	if err != nil {
		return "", err
	}
	if !taskboard.Claimable(cur) {
		return "", fmt.Errorf("task %d is not claimable (status=%s, owner=%q)", cur.ID, cur.Status, cur.Owner)
	}
	t, err := k.Board.Claim(params.ID, k.Name)
	if err != nil {
		return "", err
	}
	data, _ := json.Marshal(t)
	return string(data), nil
}

type spawnTeammateInput struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Prompt string `json:"prompt"`
}

func (k *Kernel) spawnTeammateTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[spawnTeammateInput](input)
	if err != nil {
		return "", err
	}
	if err := k.Teammates.Spawn(context.Background(), params.Name, params.Role, params.Prompt, k.TeammateSystemPrompt); err != nil {
		return "", err
	}
	return fmt.Sprintf("Spawned teammate %q (role: %s)", params.Name, params.Role), nil
}

func (k *Kernel) listTeammatesTool(ctx context.Context, input json.RawMessage) (string, error) {
	members := k.Teammates.Members()
	if len(members) == 0 {
		return "No teammates.", nil
	}
	data, _ := json.MarshalIndent(members, "", "  ")
	return string(data), nil
}

type sendMessageInput struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

func (k *Kernel) sendMessageTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[sendMessageInput](input)
	if err != nil {
		return "", err
	}
	if err := k.Bus.Send(k.Name, params.To, params.Content, bus.TypeMessage, "", nil, ""); err != nil {
		return "", err
	}
	return "Sent.", nil
}

func (k *Kernel) readInboxTool(ctx context.Context, input json.RawMessage) (string, error) {
	msgs, err := k.Bus.ReadInbox(k.Name)
	if err != nil {
		return "", err
	}
	if msgs == nil {
		msgs = []bus.Message{}
	}
	data, _ := json.Marshal(msgs)
	return string(data), nil
}

type broadcastInput struct {
	Content string `json:"content"`
}

func (k *Kernel) broadcastTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[broadcastInput](input)
	if err != nil {
		return "", err
	}
	names := make([]string, 0)
	for _, m := range k.Teammates.Members() {
		names = append(names, m.Name)
	}
	if err := k.Bus.Broadcast(k.Name, params.Content, names); err != nil {
		return "", err
	}
	return "Broadcast sent.", nil
}

type shutdownRequestInput struct {
	Name string `json:"name"`
}

func (k *Kernel) shutdownRequestTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[shutdownRequestInput](input)
	if err != nil {
		return "", err
	}
	requestID, err := k.Teammates.ShutdownRequest(params.Name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Shutdown requested (request_id=%s)", requestID), nil
}

type planApprovalInput struct {
	RequestID string `json:"request_id"`
	Approve   bool   `json:"approve"`
	Feedback  string `json:"feedback"`
}

func (k *Kernel) planApprovalTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[planApprovalInput](input)
	if err != nil {
		return "", err
	}
	if err := k.Teammates.PlanApproval(params.RequestID, params.Approve, params.Feedback); err != nil {
		return "", err
	}
	return "Plan approval recorded.", nil
}
