// ABOUTME: Aggregator that folds the runtime's event stream into one response
// ABOUTME: Handles overlapping tool invocations with FIFO-by-name pairing

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loomhq/loom-gateway/internal/runtime"
)

// ErrUpstream indicates the runtime's event sequence failed mid-turn. The
// whole chat operation fails; no partial response is returned.
var ErrUpstream = errors.New("runtime stream failed")

// collector accumulates one turn's aggregation state. Private to its request;
// independent requests never share a collector.
type collector struct {
	logger *slog.Logger

	text  strings.Builder
	calls []ToolCall

	// openByName queues indices into calls for unresolved invocations, per
	// tool name, in start order. Same-named concurrent calls resolve FIFO.
	openByName map[string][]int

	// orphanEnds counts tool-end events with no open record, kept for
	// diagnostics. Such events are dropped, never fatal.
	orphanEnds int
}

// Aggregate consumes the runtime's event stream in emission order and builds
// the consolidated response for one chat turn. The stream ends when the
// channel closes; no explicit terminal marker is expected. A mid-stream
// runtime failure discards all partial state and returns ErrUpstream.
func Aggregate(ctx context.Context, prompt, sessionID string, events <-chan *runtime.Event, logger *slog.Logger) (*Response, error) {
	c := &collector{
		logger:     logger,
		openByName: make(map[string][]int),
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return c.finalize(prompt, sessionID), nil
			}
			if ev.Kind == runtime.KindError {
				return nil, fmt.Errorf("%w: %s", ErrUpstream, ev.Err)
			}
			c.apply(ev)
		}
	}
}

// apply classifies one event and folds it into the aggregation state.
func (c *collector) apply(ev *runtime.Event) {
	switch ev.Kind {
	case runtime.KindText:
		// Arrival order, no deduplication.
		c.text.WriteString(ev.Text)

	case runtime.KindToolStart:
		c.calls = append(c.calls, ToolCall{
			Name:  ev.ToolStart.Name,
			Input: ev.ToolStart.Input,
		})
		name := ev.ToolStart.Name
		c.openByName[name] = append(c.openByName[name], len(c.calls)-1)

	case runtime.KindToolEnd:
		c.resolveTool(ev.ToolEnd)

	default:
		// Unrecognized kinds are a protocol drift, not a crash.
		c.logger.Warn("ignoring unrecognized runtime event", "kind", int(ev.Kind))
	}
}

// resolveTool pairs a tool-end with the oldest open record sharing its name.
// If a name starts twice before either resolves, end events pair with the
// starts in start order. An end with no open record is a protocol violation:
// logged, counted, dropped.
func (c *collector) resolveTool(end *runtime.ToolEnd) {
	queue := c.openByName[end.Name]
	if len(queue) == 0 {
		c.orphanEnds++
		c.logger.Warn("tool end with no open invocation", "tool", end.Name, "orphan_ends", c.orphanEnds)
		return
	}

	idx := queue[0]
	c.openByName[end.Name] = queue[1:]

	// Exactly one of output and error is ever set.
	if end.IsError {
		c.calls[idx].Error = end.Output
	} else {
		c.calls[idx].Output = end.Output
	}
}

// finalize computes usage and assembles the immutable response at
// end-of-stream.
func (c *collector) finalize(prompt, sessionID string) *Response {
	output := c.text.String()

	resp := &Response{
		Text: output,
		Usage: Usage{
			InputTokens:  EstimateTokens(prompt),
			OutputTokens: EstimateTokens(output),
		},
		SessionID: sessionID,
	}
	if len(c.calls) > 0 {
		resp.ToolCalls = c.calls
	}
	return resp
}
