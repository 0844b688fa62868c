// ABOUTME: Event model for the agent runtime's asynchronous response stream
// ABOUTME: Closed tagged variant of text, tool-start, tool-end, and error kinds

package runtime

import (
	"context"
)

// Kind indicates the type of runtime event.
type Kind int

const (
	// KindText carries a fragment of assistant output text.
	KindText Kind = iota
	// KindToolStart marks the beginning of a tool invocation.
	KindToolStart
	// KindToolEnd carries the outcome of a tool invocation.
	KindToolEnd
	// KindError signals that the runtime failed mid-stream. Terminal.
	KindError
)

// String returns the wire name of the event kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindToolStart:
		return "tool_start"
	case KindToolEnd:
		return "tool_end"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one record in the runtime's response stream. Exactly one of the
// payload fields matching Kind is set.
type Event struct {
	Kind      Kind
	Text      string     // KindText
	ToolStart *ToolStart // KindToolStart
	ToolEnd   *ToolEnd   // KindToolEnd
	Err       string     // KindError
}

// ToolStart describes a tool invocation the runtime has begun.
type ToolStart struct {
	Name  string
	Input map[string]any
}

// ToolEnd describes the outcome of a tool invocation. The runtime reports
// either a successful output or an error message, signalled by IsError.
type ToolEnd struct {
	Name    string
	Output  string
	IsError bool
}

// Request is one prompt dispatched to the runtime.
type Request struct {
	Prompt      string
	SessionID   string
	EnableTools bool
	SkillID     string
}

// Runner drives the agent runtime for one chat turn. The returned channel
// yields events in emission order and is closed at end-of-stream; a KindError
// event reports a mid-stream runtime failure. Implementations must stop
// producing and release the upstream call when ctx is cancelled.
type Runner interface {
	Run(ctx context.Context, req Request) (<-chan *Event, error)
}
