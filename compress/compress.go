// Package compress implements the two-stage pipeline run before every LLM
// call (spec §4.2): micro-compaction scrubs stale tool_result payloads
// in place, auto-compaction replaces the whole conversation with a
// two-message summary plus an archived transcript. Grounded on the
// teacher's agent/agent.go compactIfNeeded/doCompact and
// agent/context.go's serializeHistory/compactionPrompt, adapted from
// "replace everything but the last user turn" to the exact 2-message
// contract spec §4.2/P7 requires, and split into the separate
// micro-compaction stage the teacher does not have.
package compress

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kaiho/agentkernel/llm"
)

// ClearedMarker replaces a scrubbed tool_result payload.
const ClearedMarker = "[cleared]"

// MicroThresholdChars is the payload size above which a tool_result is
// scrubbed once it falls outside the most recent KeepRecent results.
const MicroThresholdChars = 100

// KeepRecent is how many of the most recent tool_result blocks are left
// untouched by micro-compaction.
const KeepRecent = 3

// DefaultAutoCompactThreshold is the token-estimate trigger for
// auto-compaction (spec §4.2).
const DefaultAutoCompactThreshold = 100_000

// TranscriptCharLimit bounds how much of the serialized conversation is
// handed to the summarization call.
const TranscriptCharLimit = 80_000

// Micro scans the conversation for user turns built from block sequences,
// collects all tool_result blocks across the whole conversation in order,
// and blanks every one but the most recent KeepRecent whose payload
// exceeds MicroThresholdChars. Operates in place on a copy, returned.
func Micro(messages []llm.Message) []llm.Message {
	total := 0
	for _, m := range messages {
		total += len(m.ToolResultBlocks())
	}
	if total <= KeepRecent {
		return messages
	}

	out := make([]llm.Message, len(messages))
	copy(out, messages)

	seen := 0
	for i := range out {
		if out[i].Blocks == nil {
			continue
		}
		blocks := make([]llm.Block, len(out[i].Blocks))
		copy(blocks, out[i].Blocks)
		changed := false
		for j, b := range blocks {
			if b.Kind != llm.KindToolResult {
				continue
			}
			seen++
			remaining := total - seen
			if remaining < KeepRecent {
				continue
			}
			if len(b.Content) > MicroThresholdChars {
				blocks[j].Content = ClearedMarker
				changed = true
			}
		}
		if changed {
			out[i].Blocks = blocks
		}
	}
	return out
}

// Summarizer is the subset of llm.Client auto-compaction needs.
type Summarizer interface {
	Converse(ctx context.Context, system string, messages []llm.Message, tools []llm.ToolSchema, maxTokens int) (*llm.Response, error)
}

// ShouldAutoCompact reports whether the conversation's estimated token
// count exceeds threshold (0 means DefaultAutoCompactThreshold).
func ShouldAutoCompact(messages []llm.Message, threshold int) bool {
	if threshold <= 0 {
		threshold = DefaultAutoCompactThreshold
	}
	return llm.EstimateTotalTokens(messages) > threshold
}

// Auto persists the full conversation as a JSONL transcript under
// transcriptDir, asks client for a continuity summary, and returns the
// replacement two-message conversation: a user turn
// "[Compressed. Transcript: <path>]\n<summary>" and an assistant
// acknowledgement (spec §4.2/P7).
func Auto(ctx context.Context, client Summarizer, messages []llm.Message, transcriptDir string) ([]llm.Message, error) {
	path, err := writeTranscript(transcriptDir, messages)
	if err != nil {
		return nil, fmt.Errorf("write transcript: %w", err)
	}

	serialized := serialize(messages)
	if len(serialized) > TranscriptCharLimit {
		serialized = serialized[:TranscriptCharLimit]
	}

	prompt := llm.TextMessage(llm.RoleUser, serialized+"\n\nSummarize for continuity")
	resp, err := client.Converse(ctx, "", []llm.Message{prompt}, nil, 0)

	summary := ""
	if err != nil {
		summary = "(summary unavailable: LLM call failed)"
	} else {
		summary = responseText(resp)
	}

	userTurn := llm.TextMessage(llm.RoleUser, fmt.Sprintf("[Compressed. Transcript: %s]\n%s", path, summary))
	assistantTurn := llm.TextMessage(llm.RoleAssistant, "Understood. Continuing with summary context.")

	return []llm.Message{userTurn, assistantTurn}, nil
}

func writeTranscript(dir string, messages []llm.Message) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("transcript_%d_%s.jsonl", time.Now().Unix(), uuid.NewString()[:8])
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, m := range messages {
		if err := enc.Encode(m); err != nil {
			return "", err
		}
	}
	return path, nil
}

func serialize(messages []llm.Message) string {
	data, err := json.Marshal(messages)
	if err != nil {
		return ""
	}
	return string(data)
}

func responseText(resp *llm.Response) string {
	out := ""
	for _, b := range resp.Content {
		if b.Kind == llm.KindText {
			out += b.Text
		}
	}
	return out
}
