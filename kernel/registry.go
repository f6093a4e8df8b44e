// Tool dispatch registry (spec §4.10): a name→handler table that is the
// single source of truth for which tools exist, paired with the schema
// list surfaced to the model. Grounded on the teacher's
// tools/registry.go (register/Execute/Definitions, stable registration
// order), generalized from a bare ToolFunc closure map to named entries
// carrying tag metadata (Design Notes: "sum type per tool... dispatcher
// dispatches on the variant tag" — the tool name is that tag; each
// handler owns its own typed input struct and decodes+validates it,
// which is the idiomatic Go rendering of a tagged union here since Go
// has no native sum types).
package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kaiho/agentkernel/llm"
)

// ToolFunc is one tool's implementation. A non-nil error becomes the
// "Error: <message>" tool_result content at the dispatch boundary
// (spec §4.10); handlers never need to format that prefix themselves.
type ToolFunc func(ctx context.Context, input json.RawMessage) (string, error)

// tag marks which consumer classes a tool is exposed to.
type tag string

const (
	tagReadOnly  tag = "readonly"  // no filesystem/state mutation
	tagExplore   tag = "explore"   // available to Explore-type subagents
	tagWrite     tag = "write"     // available to non-Explore subagents, on top of explore tools
	tagLeadOnly  tag = "lead-only" // REPL/lead-only coordination tools
	tagScheduler tag = "scheduler" // intercepted by the teammate scheduler; only the lead dispatches these here
)

type toolEntry struct {
	name string
	desc string
	fn   ToolFunc
	in   json.RawMessage
	tags map[tag]bool
}

// Registry is the handler table the lead loop, subagent runner, and
// teammate scheduler all dispatch through.
type Registry struct {
	entries []toolEntry
}

// NewRegistry builds an empty registry; callers register tools via
// register() from the various tools_*.go files in this package.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) register(name, desc string, schema json.RawMessage, fn ToolFunc, tags ...tag) {
	tm := map[tag]bool{}
	for _, t := range tags {
		tm[t] = true
	}
	r.entries = append(r.entries, toolEntry{name: name, desc: desc, fn: fn, in: schema, tags: tm})
}

// Execute locates the handler by name and runs it, converting a handler
// error (or panic) into the uniform "Error: <message>" string spec §4.10
// and §7 require. Dispatch itself never returns a Go error.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (result string) {
	for _, e := range r.entries {
		if e.name != name {
			continue
		}
		defer func() {
			if rec := recover(); rec != nil {
				result = fmt.Sprintf("Error: %v", rec)
			}
		}()
		var schema struct {
			Required []string `json:"required"`
		}
		if json.Unmarshal(e.in, &schema) == nil && len(schema.Required) > 0 {
			var fields map[string]json.RawMessage
			_ = json.Unmarshal(input, &fields)
			for _, f := range schema.Required {
				if _, ok := fields[f]; !ok {
					return fmt.Sprintf("Error: missing required field %q", f)
				}
			}
		}
		out, err := e.fn(ctx, input)
		if err != nil {
			return fmt.Sprintf("Error: %s", err)
		}
		return out
	}
	return fmt.Sprintf("Unknown tool: %s", name)
}

// IsReadOnly reports whether name is tagged read-only.
func (r *Registry) IsReadOnly(name string) bool {
	for _, e := range r.entries {
		if e.name == name {
			return e.tags[tagReadOnly]
		}
	}
	return false
}

// Definitions returns every registered tool's schema in registration
// order, excluding scheduler-intercepted tools (idle/claim_task/
// send_message/broadcast/plan are appended by the teammate package itself).
func (r *Registry) Definitions() []llm.ToolSchema {
	return r.filtered(func(e toolEntry) bool { return !e.tags[tagScheduler] })
}

// LeadDefinitions returns the full tool set, including lead-only
// coordination tools and the scheduler-tagged send_message/broadcast/
// claim_task, which the lead dispatches through this registry.
func (r *Registry) LeadDefinitions() []llm.ToolSchema {
	return r.filtered(func(toolEntry) bool { return true })
}

// TeammateDefinitions returns the subset spec §6 describes as
// "REPL-only tools" replaced with the scheduler's own idle/claim_task —
// lead-only coordination tools (spawn/list/shutdown/plan_approval) and
// send_message/broadcast/claim_task (scheduler-intercepted) are excluded
// here since teammate.Manager appends its own schemas for those.
func (r *Registry) TeammateDefinitions() []llm.ToolSchema {
	return r.filtered(func(e toolEntry) bool { return !e.tags[tagScheduler] && !e.tags[tagLeadOnly] })
}

// SubagentDefinitions returns the restricted subagent set: the
// explore-tagged tools (bash, read_file, glob, grep, ls) always,
// write_file/edit_file only when agentType is not "Explore".
func (r *Registry) SubagentDefinitions(agentType string) []llm.ToolSchema {
	return r.filtered(func(e toolEntry) bool {
		if e.tags[tagExplore] {
			return true
		}
		if e.tags[tagWrite] {
			return agentType != "Explore"
		}
		return false
	})
}

func (r *Registry) filtered(keep func(toolEntry) bool) []llm.ToolSchema {
	var out []llm.ToolSchema
	for _, e := range r.entries {
		if !keep(e) {
			continue
		}
		out = append(out, llm.ToolSchema{Name: e.name, Description: e.desc, InputSchema: e.in})
	}
	return out
}

// Names returns every registered tool name, sorted — used only for
// diagnostics (e.g. an unknown-skill-style enumeration on bad dispatch).
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	sort.Strings(names)
	return names
}
