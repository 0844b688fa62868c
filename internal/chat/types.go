// ABOUTME: Wire types for the chat operation
// ABOUTME: Messages in, aggregated response with tool calls and usage out

package chat

// Message roles accepted in a conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one turn of conversation history. Order across messages is
// conversation order and is preserved throughout.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the body of POST /api/v1/chat. Each request is self-contained
// and carries its full message history; the gateway stores nothing between
// requests.
type Request struct {
	Messages    []Message `json:"messages"`
	SessionID   string    `json:"sessionId,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
	EnableTools bool      `json:"enableTools,omitempty"`
	SkillID     string    `json:"skillId,omitempty"`
}

// ToolCall records one tool invocation within a turn. At most one of Output
// and Error is set; both empty means the runtime never reported completion.
type ToolCall struct {
	Name   string         `json:"name"`
	Input  map[string]any `json:"input"`
	Output string         `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Usage is the deterministic token estimate for one turn.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Response is the consolidated result of one chat turn, the sole externally
// observable outcome of the request. Immutable once constructed.
type Response struct {
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
	Usage     Usage      `json:"usage"`
	SessionID string     `json:"sessionId"`
}
