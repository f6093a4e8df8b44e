// Package subagent implements the bounded, inline "task" sub-agent (spec
// §3/§4.7): a short conversation capped at 30 round trips, running with a
// restricted tool set, returning a concatenation of the final turn's text
// blocks. Grounded on the teacher's agent/agent.go runExplore — same
// shape (fresh message list, read-only-by-default tool set, round cap,
// parallel tool execution, concatenated final text) generalized from the
// hardcoded "Explore" persona to the spec's agent_type-gated tool set.
package subagent

import (
	"context"
	"fmt"
	"sync"

	"github.com/kaiho/agentkernel/llm"
)

// MaxRounds bounds how many Converse round trips a subagent may take.
const MaxRounds = 30

// NoSummary is returned when the subagent produced no final text.
const NoSummary = "(no summary)"

// Dispatcher executes a single tool call by name, returning the
// tool_result content. Implemented by the kernel's tool registry; kept
// as a narrow interface here so this package never imports kernel.
type Dispatcher interface {
	Execute(ctx context.Context, toolName string, input []byte) string
	Definitions(agentType string) []llm.ToolSchema
}

// Run executes prompt as a bounded conversation. agent_type gates which
// tools are available: "Explore" gets bash, read_file, glob, grep and ls;
// anything else also gets write_file/edit_file (spec §4.7). Failures are
// swallowed into the return string, never propagated, per spec §7
// ("Transient external failures... for teammates... silently"; the
// subagent mirrors that contract for its caller).
func Run(ctx context.Context, client llm.Client, dispatch Dispatcher, systemPrompt, prompt, agentType string) string {
	tools := dispatch.Definitions(agentType)

	messages := []llm.Message{llm.TextMessage(llm.RoleUser, prompt)}

	for round := 0; round < MaxRounds; round++ {
		resp, err := client.Converse(ctx, systemPrompt, messages, tools, 0)
		if err != nil {
			return fmt.Sprintf("(subagent error: %s)", err)
		}

		assistantMsg := llm.BlockMessage(llm.RoleAssistant, resp.Content)
		messages = append(messages, assistantMsg)

		toolUses := assistantMsg.ToolUseBlocks()
		if len(toolUses) == 0 {
			return finalText(resp.Content)
		}

		results := make([]llm.Block, len(toolUses))
		var wg sync.WaitGroup
		for i, tu := range toolUses {
			wg.Add(1)
			go func(idx int, tu llm.Block) {
				defer wg.Done()
				output := dispatch.Execute(ctx, tu.ToolName, tu.Input)
				results[idx] = llm.ToolResultBlock(tu.ToolUseID, output)
			}(i, tu)
		}
		wg.Wait()

		messages = append(messages, llm.BlockMessage(llm.RoleUser, results))
	}

	return "Subagent reached maximum iterations without completing."
}

func finalText(blocks []llm.Block) string {
	out := ""
	for _, b := range blocks {
		if b.Kind == llm.KindText {
			out += b.Text
		}
	}
	if out == "" {
		return NoSummary
	}
	return out
}
