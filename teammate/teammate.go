// Package teammate implements the persistent, cooperatively-scheduled
// worker (spec §4.8, the hardest subcomponent): a work-phase round loop,
// an idle-phase poll with auto-claim and identity re-injection, and the
// shutdown/plan-approval handshakes (spec §4.9). Grounded on the
// teacher's agent/agent.go Run loop (iterate, drain, Converse, dispatch,
// append) reused as the shape of the work phase; there is no teacher
// equivalent for idle/shutdown, so that state machine is built directly
// from spec §4.8/§4.9, persisting .team/config.json with the same
// write-temp-rename idiom agent/session.go uses for its own state file.
package teammate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kaiho/agentkernel/bus"
	"github.com/kaiho/agentkernel/compress"
	"github.com/kaiho/agentkernel/kerrors"
	"github.com/kaiho/agentkernel/llm"
	"github.com/kaiho/agentkernel/safepath"
	"github.com/kaiho/agentkernel/taskboard"
)

// Status is a teammate's current scheduler state (spec §4.8's graph).
type Status string

const (
	StatusWorking  Status = "working"
	StatusIdle     Status = "idle"
	StatusShutdown Status = "shutdown"
)

// MaxWorkRounds bounds a single work-phase's Converse calls.
const MaxWorkRounds = 50

// IdlePollInterval and IdlePollTotal bound the idle-phase poll loop.
const (
	IdlePollInterval = 5 * time.Second
	IdlePollTotal    = 60 * time.Second
)

// Record is the persisted, caller-visible teammate state (spec §3).
type Record struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Status Status `json:"status"`
}

type teamConfig struct {
	TeamName string   `json:"team_name"`
	Members  []Record `json:"members"`
}

// Dispatcher executes a non-scheduler tool call by name. Scheduler tools
// (idle, claim_task, send_message, broadcast, plan) are intercepted by
// the Manager itself, which also answers a shutdown_request on its own;
// everything else is delegated here.
type Dispatcher interface {
	Execute(ctx context.Context, toolName string, input []byte) string
	Definitions() []llm.ToolSchema
}

// pendingEntry is a single shutdown or plan-approval handshake in flight.
type pendingEntry struct {
	Kind     string // "shutdown" or "plan"
	Teammate string
	Approve  *bool
	Feedback string
	Content  string
}

// Manager owns every teammate's record and running loop, the pending
// shutdown/plan maps, and the shared bus/board/client the loops use.
type Manager struct {
	teamName string
	dir      string // <workDir>/.team
	bus      *bus.Bus
	board    *taskboard.Board
	client   llm.Client
	dispatch Dispatcher

	mu      sync.Mutex
	members map[string]*Record
	cancels map[string]context.CancelFunc

	pendingMu sync.Mutex
	pending   map[string]*pendingEntry
}

// New returns a Manager. dir is typically "<workDir>/.team".
func New(teamName, dir string, b *bus.Bus, board *taskboard.Board, client llm.Client, dispatch Dispatcher) *Manager {
	m := &Manager{
		teamName: teamName,
		dir:      dir,
		bus:      b,
		board:    board,
		client:   client,
		dispatch: dispatch,
		members:  map[string]*Record{},
		cancels:  map[string]context.CancelFunc{},
		pending:  map[string]*pendingEntry{},
	}
	m.loadConfig()
	return m
}

func (m *Manager) configPath() string {
	return filepath.Join(m.dir, "config.json")
}

func (m *Manager) loadConfig() {
	data, err := os.ReadFile(m.configPath())
	if err != nil {
		return
	}
	var cfg teamConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return
	}
	for i := range cfg.Members {
		r := cfg.Members[i]
		m.members[r.Name] = &r
	}
}

// persist must be called with mu held.
func (m *Manager) persist() error {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("create team dir: %w", err)
	}
	names := make([]string, 0, len(m.members))
	for name := range m.members {
		names = append(names, name)
	}
	sort.Strings(names)
	cfg := teamConfig{TeamName: m.teamName}
	for _, name := range names {
		cfg.Members = append(cfg.Members, *m.members[name])
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return safepath.AtomicWrite(m.configPath(), data, 0644)
}

// Members returns every known teammate's current record.
func (m *Manager) Members() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.members))
	for name := range m.members {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Record, len(names))
	for i, name := range names {
		out[i] = *m.members[name]
	}
	return out
}

// memberNames returns every known teammate's name, for Broadcast.
func (m *Manager) memberNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.members))
	for name := range m.members {
		names = append(names, name)
	}
	return names
}

// Spawn creates or reactivates a teammate record and starts its loop on a
// fresh task. Rejects if the existing record's status is working
// (spec §4.8/P5). Respawning an idle/shutdown teammate with a different
// role is accepted (see DESIGN.md open-question decision (a)).
func (m *Manager) Spawn(ctx context.Context, name, role, prompt, systemPrompt string) error {
	m.mu.Lock()
	existing, ok := m.members[name]
	if ok && existing.Status == StatusWorking {
		m.mu.Unlock()
		return kerrors.NewValidationError("name", fmt.Sprintf("teammate %q is already working", name))
	}
	rec := &Record{Name: name, Role: role, Status: StatusWorking}
	m.members[name] = rec
	if err := m.persist(); err != nil {
		m.mu.Unlock()
		return err
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancels[name] = cancel
	m.mu.Unlock()

	go m.run(loopCtx, name, role, prompt, systemPrompt)
	return nil
}

func (m *Manager) setStatus(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.members[name]; ok {
		rec.Status = status
		m.persist()
	}
}

// run is the top-level loop for one teammate: work phase, then idle
// phase, repeating until shutdown.
func (m *Manager) run(ctx context.Context, name, role, initialPrompt, systemPrompt string) {
	identity := fmt.Sprintf("<identity>You are '%s', role: %s, team: %s.</identity>", name, role, m.teamName)
	messages := []llm.Message{
		llm.TextMessage(llm.RoleUser, identity),
		llm.TextMessage(llm.RoleAssistant, "Understood."),
		llm.TextMessage(llm.RoleUser, initialPrompt),
	}

	for {
		var shouldShutdown bool
		messages, shouldShutdown = m.workPhase(ctx, name, systemPrompt, messages)
		if shouldShutdown {
			m.setStatus(name, StatusShutdown)
			return
		}

		var resumed bool
		messages, resumed = m.idlePhase(ctx, name, role, messages)
		if !resumed {
			m.setStatus(name, StatusShutdown)
			return
		}
	}
}

// workPhase runs up to MaxWorkRounds Converse round trips. Returns the
// updated conversation and whether the teammate should shut down.
func (m *Manager) workPhase(ctx context.Context, name, systemPrompt string, messages []llm.Message) ([]llm.Message, bool) {
	m.setStatus(name, StatusWorking)
	tools := m.dispatch.Definitions()
	tools = append(tools, idleToolSchema, claimTaskToolSchema, sendMessageToolSchema, broadcastToolSchema, planToolSchema)

	for round := 0; round < MaxWorkRounds; round++ {
		msgs, err := m.drainInbox(name)
		if err != nil {
			return messages, true
		}
		for _, im := range msgs {
			if im.Type == bus.TypeShutdownRequest {
				m.respondShutdown(name, im)
				return messages, true
			}
			data, _ := json.Marshal(im)
			messages = append(messages, llm.TextMessage(llm.RoleUser, string(data)))
		}

		messages = compress.Micro(messages)

		resp, err := m.client.Converse(ctx, systemPrompt, messages, tools, 0)
		if err != nil {
			// Transient external failure: teammate shuts down silently (spec §7).
			return messages, true
		}

		assistantMsg := llm.BlockMessage(llm.RoleAssistant, resp.Content)
		messages = append(messages, assistantMsg)

		toolUses := assistantMsg.ToolUseBlocks()
		if len(toolUses) == 0 {
			return messages, false
		}

		results, becomeIdle := m.executeTools(ctx, name, toolUses)
		messages = append(messages, llm.BlockMessage(llm.RoleUser, results))
		if becomeIdle {
			return messages, false
		}
	}
	return messages, false
}

// executeTools dispatches each tool_use block, intercepting the
// scheduler-owned tool names before falling back to the injected
// Dispatcher for everything else.
func (m *Manager) executeTools(ctx context.Context, name string, toolUses []llm.Block) ([]llm.Block, bool) {
	results := make([]llm.Block, len(toolUses))
	becomeIdle := false
	for i, tu := range toolUses {
		var output string
		switch tu.ToolName {
		case "idle":
			becomeIdle = true
			output = "Marked idle."
		case "claim_task":
			output = m.handleClaimTask(name, tu.Input)
		case "send_message":
			output = m.handleSendMessage(name, tu.Input)
		case "broadcast":
			output = m.handleBroadcast(name, tu.Input)
		case "plan":
			output = m.handlePlan(name, tu.Input)
		default:
			output = m.dispatch.Execute(ctx, tu.ToolName, tu.Input)
		}
		results[i] = llm.ToolResultBlock(tu.ToolUseID, output)
	}
	return results, becomeIdle
}

func (m *Manager) handleClaimTask(name string, input []byte) string {
	var args struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	cur, err := m.board.Get(args.ID)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	if !taskboard.Claimable(cur) {
		return fmt.Sprintf("Error: task %d is not claimable (status=%s, owner=%q)", cur.ID, cur.Status, cur.Owner)
	}
	task, err := m.board.Claim(args.ID, name)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	data, _ := json.Marshal(task)
	return string(data)
}

func (m *Manager) handleSendMessage(from string, input []byte) string {
	var args struct {
		To      string `json:"to"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	if err := m.bus.Send(from, args.To, args.Content, bus.TypeMessage, "", nil, ""); err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	return "Sent."
}

func (m *Manager) handleBroadcast(from string, input []byte) string {
	var args struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	if err := m.bus.Broadcast(from, args.Content, m.memberNames()); err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	return "Broadcast sent."
}

// handlePlan files a plan under a fresh request_id, symmetric to
// ShutdownRequest (DESIGN.md open-question decision (b)).
func (m *Manager) handlePlan(name string, input []byte) string {
	var args struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	requestID := uuid.NewString()[:8]
	m.pendingMu.Lock()
	m.pending[requestID] = &pendingEntry{Kind: "plan", Teammate: name, Content: args.Content}
	m.pendingMu.Unlock()
	return fmt.Sprintf("Plan filed as request %s, awaiting approval.", requestID)
}

func (m *Manager) drainInbox(name string) ([]bus.Message, error) {
	return m.bus.ReadInbox(name)
}

func (m *Manager) respondShutdown(name string, req bus.Message) {
	approve := true
	m.bus.Send(name, req.From, "", bus.TypeShutdownResponse, req.RequestID, &approve, "")
}

// idlePhase sets status=idle and polls for inbox messages or claimable
// tasks up to IdlePollTotal, resuming work on the first trigger. Returns
// the updated conversation and whether the teammate resumed (false means
// the caller should shut down: the timeout elapsed, ctx ended, or a
// shutdown_request arrived).
func (m *Manager) idlePhase(ctx context.Context, name, role string, messages []llm.Message) ([]llm.Message, bool) {
	m.setStatus(name, StatusIdle)

	deadline := time.Now().Add(IdlePollTotal)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return messages, false
		default:
		}

		msgs, err := m.drainInbox(name)
		if err == nil && len(msgs) > 0 {
			for _, im := range msgs {
				if im.Type == bus.TypeShutdownRequest {
					m.respondShutdown(name, im)
					return messages, false
				}
			}
			messages = reinjectIdentity(messages, name, role, m.teamName)
			for _, im := range msgs {
				data, _ := json.Marshal(im)
				messages = append(messages, llm.TextMessage(llm.RoleUser, string(data)))
			}
			return messages, true
		}

		claimable, err := m.board.ClaimableTasks()
		if err == nil && len(claimable) > 0 {
			task := claimable[0]
			claimed, err := m.board.Claim(task.ID, name)
			if err == nil {
				messages = reinjectIdentity(messages, name, role, m.teamName)
				messages = append(messages,
					llm.TextMessage(llm.RoleUser, fmt.Sprintf("<auto-claimed>Task #%d: %s\n%s</auto-claimed>", claimed.ID, claimed.Subject, claimed.Description)),
					llm.TextMessage(llm.RoleAssistant, fmt.Sprintf("Claimed task #%d.", claimed.ID)),
				)
				return messages, true
			}
		}

		time.Sleep(IdlePollInterval)
	}
	return messages, false
}

// reinjectIdentity re-establishes who the teammate is if the conversation
// has been compacted down to <=3 messages (spec §4.8).
func reinjectIdentity(messages []llm.Message, name, role, team string) []llm.Message {
	if len(messages) > 3 {
		return messages
	}
	identity := fmt.Sprintf("<identity>You are '%s', role: %s, team: %s.</identity>", name, role, team)
	return append(messages,
		llm.TextMessage(llm.RoleUser, identity),
		llm.TextMessage(llm.RoleAssistant, "Understood."),
	)
}

// ShutdownRequest allocates a request_id, records a pending shutdown
// entry, and sends a shutdown_request message to the named teammate
// (spec §4.9). The teammate's scheduler honors it at its next inbox
// drain (work phase) or idle-poll tick.
func (m *Manager) ShutdownRequest(name string) (string, error) {
	m.mu.Lock()
	_, ok := m.members[name]
	m.mu.Unlock()
	if !ok {
		return "", kerrors.NewValidationError("name", fmt.Sprintf("unknown teammate %q", name))
	}

	requestID := uuid.NewString()[:8]
	m.pendingMu.Lock()
	m.pending[requestID] = &pendingEntry{Kind: "shutdown", Teammate: name}
	m.pendingMu.Unlock()

	if err := m.bus.Send("lead", name, "", bus.TypeShutdownRequest, requestID, nil, ""); err != nil {
		return "", err
	}
	return requestID, nil
}

// PlanApproval resolves a pending plan request, symmetric to
// ShutdownRequest, and sends a plan_approval_response back to the filer.
func (m *Manager) PlanApproval(requestID string, approve bool, feedback string) error {
	m.pendingMu.Lock()
	entry, ok := m.pending[requestID]
	if ok {
		entry.Approve = &approve
		entry.Feedback = feedback
	}
	m.pendingMu.Unlock()
	if !ok {
		return kerrors.NewValidationError("request_id", fmt.Sprintf("unknown request %q", requestID))
	}
	return m.bus.Send("lead", entry.Teammate, entry.Content, bus.TypePlanApprovalResponse, requestID, &approve, feedback)
}

var idleToolSchema = llm.ToolSchema{
	Name:        "idle",
	Description: "Mark this teammate idle after the current round; the scheduler polls for new work.",
	InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
}

var claimTaskToolSchema = llm.ToolSchema{
	Name:        "claim_task",
	Description: "Claim a pending, unblocked task by id.",
	InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"integer"}},"required":["id"]}`),
}

var sendMessageToolSchema = llm.ToolSchema{
	Name:        "send_message",
	Description: "Send a message to another agent via the bus.",
	InputSchema: json.RawMessage(`{"type":"object","properties":{"to":{"type":"string"},"content":{"type":"string"}},"required":["to","content"]}`),
}

var broadcastToolSchema = llm.ToolSchema{
	Name:        "broadcast",
	Description: "Send a message to every other teammate.",
	InputSchema: json.RawMessage(`{"type":"object","properties":{"content":{"type":"string"}},"required":["content"]}`),
}

var planToolSchema = llm.ToolSchema{
	Name:        "plan",
	Description: "File a plan for lead approval.",
	InputSchema: json.RawMessage(`{"type":"object","properties":{"content":{"type":"string"}},"required":["content"]}`),
}
