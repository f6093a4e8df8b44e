// Package llm defines the conversation data model (spec §3) and the
// Converse capability the kernel drives the loop through. The LLM provider
// itself is an external collaborator (spec §1): this package only owns the
// shapes and a generic HTTP adapter, never model-specific prompt tuning.
package llm

import (
	"context"
	"encoding/json"
)

// Role is a conversation turn's speaker.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockKind tags the closed Block sum type. Kinds beyond the three spec §3
// names are preserved as KindOpaque so a forward-compatible provider
// response round-trips without loss (Design Notes: "duck-typed response
// blocks").
type BlockKind string

const (
	KindText       BlockKind = "text"
	KindToolUse    BlockKind = "tool_use"
	KindToolResult BlockKind = "tool_result"
	KindOpaque     BlockKind = "opaque"
)

// Block is one element of a Message's content sequence.
type Block struct {
	Kind BlockKind

	// KindText
	Text string

	// KindToolUse
	ToolUseID string
	ToolName  string
	Input     json.RawMessage

	// KindToolResult
	ToolResultID string // references a ToolUseID
	Content      string

	// KindOpaque: the raw provider block, preserved verbatim.
	Raw json.RawMessage
}

// TextBlock constructs a text content block.
func TextBlock(text string) Block { return Block{Kind: KindText, Text: text} }

// ToolUseBlock constructs a tool_use content block.
func ToolUseBlock(id, name string, input json.RawMessage) Block {
	return Block{Kind: KindToolUse, ToolUseID: id, ToolName: name, Input: input}
}

// ToolResultBlock constructs a tool_result content block.
func ToolResultBlock(toolUseID, content string) Block {
	return Block{Kind: KindToolResult, ToolResultID: toolUseID, Content: content}
}

// Message is one conversation turn (spec §3). Content is either a plain
// text blob (Text set, Blocks nil) or an ordered block sequence (Blocks
// set, Text empty) — never both.
type Message struct {
	Role   Role
	Text   string
	Blocks []Block
}

// TextMessage creates a plain-text turn.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Text: text}
}

// BlockMessage creates a block-sequence turn.
func BlockMessage(role Role, blocks []Block) Message {
	return Message{Role: role, Blocks: blocks}
}

// ToolUseBlocks returns every tool_use block in the message, in order.
func (m Message) ToolUseBlocks() []Block {
	var out []Block
	for _, b := range m.Blocks {
		if b.Kind == KindToolUse {
			out = append(out, b)
		}
	}
	return out
}

// ToolResultBlocks returns every tool_result block in the message, in order.
func (m Message) ToolResultBlocks() []Block {
	var out []Block
	for _, b := range m.Blocks {
		if b.Kind == KindToolResult {
			out = append(out, b)
		}
	}
	return out
}

// TextContent concatenates every text block (or returns Text if this
// message carries plain-text content instead of a block sequence).
func (m Message) TextContent() string {
	if m.Blocks == nil {
		return m.Text
	}
	out := ""
	for _, b := range m.Blocks {
		if b.Kind == KindText {
			out += b.Text
		}
	}
	return out
}

// ToolSchema describes one tool available to the model (spec §6).
type ToolSchema struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Response is what Converse returns.
type Response struct {
	Content    []Block
	StopReason string // "tool_use" is semantically significant; anything else ends the loop
	Model      string
}

// Client is the opaque LLM capability spec §1/§6 names.
type Client interface {
	Converse(ctx context.Context, system string, messages []Message, tools []ToolSchema, maxTokens int) (*Response, error)
}
