// Package kernel wires the lead agent loop (spec §4.11) together with
// the tool registry and every subsystem package (todo, taskboard, bus,
// background, skills, compress, subagent, teammate). Grounded on the
// teacher's agent/agent.go Run loop for the overall round shape
// (Converse, append, dispatch tool_use blocks, append results, repeat
// until stop_reason != "tool_use"), generalized with the synthetic
// <background-results>/<inbox> turns, micro/auto-compaction hooks, and
// nag-policy reminder spec §4.11 adds on top of that shape.
package kernel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kaiho/agentkernel/background"
	"github.com/kaiho/agentkernel/bus"
	"github.com/kaiho/agentkernel/compress"
	"github.com/kaiho/agentkernel/kerrors"
	"github.com/kaiho/agentkernel/llm"
	"github.com/kaiho/agentkernel/safepath"
	"github.com/kaiho/agentkernel/skills"
	"github.com/kaiho/agentkernel/taskboard"
	"github.com/kaiho/agentkernel/teammate"
	"github.com/kaiho/agentkernel/todo"
)

// ValidationError re-exports kerrors.ValidationError under the name
// SPEC_FULL.md's error-handling section gives it: callers type-switch
// on kernel.ValidationError without knowing the leaf package that
// actually defines it (todo and taskboard need the type before this
// package exists, hence the split).
type ValidationError = kerrors.ValidationError

// nagAfterRounds is how many consecutive work rounds may pass without a
// TodoWrite call before the lead is reminded (spec §4.11 step 9).
const nagAfterRounds = 3

// Kernel is the lead agent's own execution context (Design Notes: "a
// single injected context... threaded explicitly", rendered here as one
// struct rather than ambient globals).
type Kernel struct {
	Name    string
	WorkDir string
	Client  llm.Client
	Log     zerolog.Logger

	Todo       *todo.Tracker
	Board      *taskboard.Board
	Bus        *bus.Bus
	Background *background.Runner
	Skills     *skills.Catalog
	Teammates  *teammate.Manager

	SubagentSystemPrompt string
	TeammateSystemPrompt string
	LeadSystemPrompt     string

	shell    *safepath.Shell
	registry *Registry

	messages []llm.Message

	roundsSinceTodoWrite     int
	todoWriteCalledThisRound bool
	compressCalledThisRound  bool
}

// Config bundles NewKernel's dependencies. Every field is required
// except SubagentSystemPrompt/TeammateSystemPrompt/LeadSystemPrompt,
// which default to empty (providers are free to supply their own
// system prompt conventions).
type Config struct {
	Name    string
	WorkDir string
	Client  llm.Client
	Log     zerolog.Logger

	Todo       *todo.Tracker
	Board      *taskboard.Board
	Bus        *bus.Bus
	Background *background.Runner
	Skills     *skills.Catalog

	LeadSystemPrompt     string
	TeammateSystemPrompt string
	SubagentSystemPrompt string
}

// NewKernel assembles a Kernel and registers every tool. Teammates is
// constructed here (not injected) since it needs an adapter wrapping
// this kernel's own registry to satisfy teammate.Dispatcher.
func NewKernel(cfg Config) *Kernel {
	k := &Kernel{
		Name:                 cfg.Name,
		WorkDir:              cfg.WorkDir,
		Client:               cfg.Client,
		Log:                  cfg.Log,
		Todo:                 cfg.Todo,
		Board:                cfg.Board,
		Bus:                  cfg.Bus,
		Background:           cfg.Background,
		Skills:               cfg.Skills,
		LeadSystemPrompt:     cfg.LeadSystemPrompt,
		TeammateSystemPrompt: cfg.TeammateSystemPrompt,
		SubagentSystemPrompt: cfg.SubagentSystemPrompt,
		shell:                safepath.NewShell(cfg.WorkDir),
		registry:             NewRegistry(),
	}
	k.registerFSTools()
	k.registerControlTools()

	k.Teammates = teammate.New(cfg.Name+"-team", cfg.WorkDir+"/.team", cfg.Bus, cfg.Board, cfg.Client, &teammateDispatcher{k: k})
	return k
}

// subagentDispatcher/teammateDispatcher convert the
// registry's json.RawMessage-typed Execute into the plain []byte the
// subagent and teammate packages' Dispatcher interfaces declare, so
// neither leaf package needs to import encoding/json's named type or
// this package.

type subagentDispatcher struct {
	k *Kernel
}

func (d *subagentDispatcher) Execute(ctx context.Context, toolName string, input []byte) string {
	return d.k.registry.Execute(ctx, toolName, json.RawMessage(input))
}

func (d *subagentDispatcher) Definitions(agentType string) []llm.ToolSchema {
	return d.k.registry.SubagentDefinitions(agentType)
}

type teammateDispatcher struct{ k *Kernel }

func (d *teammateDispatcher) Execute(ctx context.Context, toolName string, input []byte) string {
	return d.k.registry.Execute(ctx, toolName, json.RawMessage(input))
}

func (d *teammateDispatcher) Definitions() []llm.ToolSchema {
	return d.k.registry.TeammateDefinitions()
}

// Converse drives one user turn through the full lead loop (spec
// §4.11's eleven steps) to completion, returning the final assistant
// text.
func (k *Kernel) Converse(ctx context.Context, userInput string) (string, error) {
	k.messages = append(k.messages, llm.TextMessage(llm.RoleUser, userInput))

	for {
		// 1. micro-compact stale tool_result payloads before every call.
		k.messages = compress.Micro(k.messages)

		// 2/11. auto-compact if the transcript has grown past threshold.
		if compress.ShouldAutoCompact(k.messages, compress.DefaultAutoCompactThreshold) {
			if err := k.autoCompact(ctx); err != nil {
				k.Log.Warn().Err(err).Msg("auto-compaction failed, continuing uncompacted")
			}
		}

		// 3. drain background notifications into a synthetic turn plus
		// acknowledgement.
		if notes := k.Background.Drain(); len(notes) > 0 {
			k.messages = append(k.messages,
				llm.TextMessage(llm.RoleUser, formatBackgroundNotifications(notes)),
				llm.TextMessage(llm.RoleAssistant, "Acknowledged background results."))
		}

		// 4. drain the lead's own inbox into a synthetic turn plus
		// acknowledgement.
		inbox, err := k.Bus.ReadInbox(k.Name)
		if err != nil {
			k.Log.Warn().Err(err).Msg("inbox drain failed")
		} else if len(inbox) > 0 {
			k.messages = append(k.messages,
				llm.TextMessage(llm.RoleUser, formatInbox(inbox)),
				llm.TextMessage(llm.RoleAssistant, "Acknowledged inbox."))
		}

		// 5. converse.
		resp, err := k.Client.Converse(ctx, k.LeadSystemPrompt, k.messages, k.registry.LeadDefinitions(), 0)
		if err != nil {
			return "", fmt.Errorf("converse: %w", err)
		}

		// 6. append the assistant turn.
		k.messages = append(k.messages, llm.BlockMessage(llm.RoleAssistant, resp.Content))

		// 7. stop if the model did not ask for tools.
		if resp.StopReason != "tool_use" {
			return textOf(resp), nil
		}

		// 8. execute every tool_use block.
		k.todoWriteCalledThisRound = false
		k.compressCalledThisRound = false
		results := k.executeTools(ctx, resp.Content)

		// 9. nag policy: after nagAfterRounds rounds with no TodoWrite,
		// remind the lead to keep the checklist current.
		if k.todoWriteCalledThisRound {
			k.roundsSinceTodoWrite = 0
		} else {
			k.roundsSinceTodoWrite++
		}
		if k.roundsSinceTodoWrite >= nagAfterRounds && k.Todo.HasOpenItems() {
			results = append([]llm.Block{llm.TextBlock("<reminder>Update your todos.</reminder>")}, results...)
			k.roundsSinceTodoWrite = 0
		}

		// 10. append results as the next user turn.
		k.messages = append(k.messages, llm.BlockMessage(llm.RoleUser, results))

		// 11. if compress was invoked explicitly this round, re-compact
		// immediately rather than waiting for the next threshold check.
		if k.compressCalledThisRound {
			if err := k.autoCompact(ctx); err != nil {
				k.Log.Warn().Err(err).Msg("manual compaction failed")
			}
		}
	}
}

func (k *Kernel) executeTools(ctx context.Context, blocks []llm.Block) []llm.Block {
	var results []llm.Block
	for _, b := range blocks {
		if b.Kind != llm.KindToolUse {
			continue
		}
		out := k.registry.Execute(ctx, b.ToolName, b.Input)
		results = append(results, llm.ToolResultBlock(b.ToolUseID, out))
	}
	return results
}

func (k *Kernel) autoCompact(ctx context.Context) error {
	compacted, err := compress.Auto(ctx, k.Client, k.messages, k.WorkDir+"/.transcripts")
	if err != nil {
		return err
	}
	k.messages = compacted
	return nil
}

func textOf(resp *llm.Response) string {
	out := ""
	for _, b := range resp.Content {
		if b.Kind == llm.KindText {
			out += b.Text
		}
	}
	return out
}

func formatBackgroundNotifications(notes []background.Notification) string {
	out := "<background-results>\n"
	for _, n := range notes {
		out += fmt.Sprintf("job %s (%s): %s\n", n.TaskID, n.Status, n.Result)
	}
	return out + "</background-results>"
}

func formatInbox(msgs []bus.Message) string {
	out := "<inbox>\n"
	for _, m := range msgs {
		out += fmt.Sprintf("from %s: %s\n", m.From, m.Content)
	}
	return out + "</inbox>"
}
