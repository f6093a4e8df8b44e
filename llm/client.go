package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient implements Client against a generic messages-style HTTP API
// (request/response shape modeled on the block sequence spec §3 describes).
// Endpoint, API key, and model come from environment/config per spec §6 —
// this type itself holds only what it needs to make the call.
type HTTPClient struct {
	apiKey    string
	model     string
	baseURL   string
	http      *http.Client
	maxTokens int
}

// NewHTTPClient builds an adapter. baseURL should not include a trailing
// slash; maxTokens is the default cap used when callers pass 0.
func NewHTTPClient(apiKey, model, baseURL string, maxTokens int) *HTTPClient {
	return &HTTPClient{
		apiKey:    apiKey,
		model:     model,
		baseURL:   baseURL,
		maxTokens: maxTokens,
		http:      &http.Client{Timeout: 120 * time.Second},
	}
}

type wireBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type wireMessage struct {
	Role    string      `json:"role"`
	Content []wireBlock `json:"content"`
}

type wireToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type wireRequest struct {
	Model     string           `json:"model"`
	System    string           `json:"system,omitempty"`
	Messages  []wireMessage    `json:"messages"`
	Tools     []wireToolSchema `json:"tools,omitempty"`
	MaxTokens int              `json:"max_tokens"`
}

type wireResponse struct {
	Content    []wireBlock `json:"content"`
	StopReason string      `json:"stop_reason"`
	Model      string      `json:"model"`
}

func toWireMessages(messages []Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wm := wireMessage{Role: string(m.Role)}
		if m.Blocks == nil {
			wm.Content = []wireBlock{{Type: "text", Text: m.Text}}
		} else {
			for _, b := range m.Blocks {
				wm.Content = append(wm.Content, toWireBlock(b))
			}
		}
		out = append(out, wm)
	}
	return out
}

func toWireBlock(b Block) wireBlock {
	switch b.Kind {
	case KindText:
		return wireBlock{Type: "text", Text: b.Text}
	case KindToolUse:
		return wireBlock{Type: "tool_use", ID: b.ToolUseID, Name: b.ToolName, Input: b.Input}
	case KindToolResult:
		return wireBlock{Type: "tool_result", ToolUseID: b.ToolResultID, Content: b.Content}
	default:
		var raw wireBlock
		json.Unmarshal(b.Raw, &raw)
		return raw
	}
}

func fromWireBlock(wb wireBlock) Block {
	switch wb.Type {
	case "text":
		return TextBlock(wb.Text)
	case "tool_use":
		return ToolUseBlock(wb.ID, wb.Name, wb.Input)
	case "tool_result":
		return ToolResultBlock(wb.ToolUseID, wb.Content)
	default:
		raw, _ := json.Marshal(wb)
		return Block{Kind: KindOpaque, Raw: raw}
	}
}

// Converse implements Client.
func (c *HTTPClient) Converse(ctx context.Context, system string, messages []Message, tools []ToolSchema, maxTokens int) (*Response, error) {
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	req := wireRequest{
		Model:     c.model,
		System:    system,
		Messages:  toWireMessages(messages),
		MaxTokens: maxTokens,
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, wireToolSchema{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := doWithRetry(ctx, defaultRetryConfig(), func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		return c.http.Do(httpReq)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var wr wireResponse
	if err := json.Unmarshal(data, &wr); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	out := &Response{StopReason: wr.StopReason, Model: wr.Model}
	for _, wb := range wr.Content {
		out.Content = append(out.Content, fromWireBlock(wb))
	}
	return out, nil
}
