// ABOUTME: Tests for the runtime SSE client
// ABOUTME: Covers frame parsing, unknown events, errors, and cancellation

package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sseServer returns a test server that writes the given frames and the
// Authorization header it observed.
func sseServer(t *testing.T, frames []string) (*httptest.Server, *string) {
	t.Helper()
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			fmt.Fprint(w, frame)
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &gotAuth
}

func collectEvents(t *testing.T, ch <-chan *Event) []*Event {
	t.Helper()
	var events []*Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for event stream to close")
		}
	}
}

func TestClient_Run_ParsesEventStream(t *testing.T) {
	srv, gotAuth := sseServer(t, []string{
		"event: text\ndata: {\"text\":\"Hello \"}\n\n",
		"event: tool_start\ndata: {\"name\":\"search\",\"input\":{\"query\":\"go\"}}\n\n",
		"event: tool_end\ndata: {\"name\":\"search\",\"output\":\"3 results\",\"is_error\":false}\n\n",
		"event: text\ndata: {\"text\":\"world\"}\n\n",
		"event: done\ndata: {}\n\n",
	})

	client, err := NewClient(Config{APIKey: "sk-test", Endpoint: srv.URL}, discardLogger())
	require.NoError(t, err)

	ch, err := client.Run(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)

	events := collectEvents(t, ch)
	require.Len(t, events, 4)

	assert.Equal(t, KindText, events[0].Kind)
	assert.Equal(t, "Hello ", events[0].Text)

	require.Equal(t, KindToolStart, events[1].Kind)
	assert.Equal(t, "search", events[1].ToolStart.Name)
	assert.Equal(t, "go", events[1].ToolStart.Input["query"])

	require.Equal(t, KindToolEnd, events[2].Kind)
	assert.Equal(t, "3 results", events[2].ToolEnd.Output)
	assert.False(t, events[2].ToolEnd.IsError)

	assert.Equal(t, KindText, events[3].Kind)
	assert.Equal(t, "Bearer sk-test", *gotAuth)
}

func TestClient_Run_UnknownEventDropped(t *testing.T) {
	srv, _ := sseServer(t, []string{
		"event: thinking\ndata: {\"text\":\"hmm\"}\n\n",
		"event: text\ndata: {\"text\":\"answer\"}\n\n",
	})

	client, err := NewClient(Config{APIKey: "sk-test", Endpoint: srv.URL}, discardLogger())
	require.NoError(t, err)

	ch, err := client.Run(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)

	events := collectEvents(t, ch)
	require.Len(t, events, 1)
	assert.Equal(t, "answer", events[0].Text)
}

func TestClient_Run_MultiLineDataFrame(t *testing.T) {
	// One event's payload split across two data lines joins with a newline,
	// which JSON tolerates between tokens.
	srv, _ := sseServer(t, []string{
		"event: text\ndata: {\"text\":\ndata: \"split\"}\n\n",
	})

	client, err := NewClient(Config{APIKey: "sk-test", Endpoint: srv.URL}, discardLogger())
	require.NoError(t, err)

	ch, err := client.Run(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)

	events := collectEvents(t, ch)
	require.Len(t, events, 1)
	assert.Equal(t, KindText, events[0].Kind)
	assert.Equal(t, "split", events[0].Text)
}

func TestClient_Run_ErrorEvent(t *testing.T) {
	srv, _ := sseServer(t, []string{
		"event: text\ndata: {\"text\":\"partial\"}\n\n",
		"event: error\ndata: {\"message\":\"model overloaded\"}\n\n",
	})

	client, err := NewClient(Config{APIKey: "sk-test", Endpoint: srv.URL}, discardLogger())
	require.NoError(t, err)

	ch, err := client.Run(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)

	events := collectEvents(t, ch)
	require.Len(t, events, 2)
	assert.Equal(t, KindError, events[1].Kind)
	assert.Equal(t, "model overloaded", events[1].Err)
}

func TestClient_Run_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{APIKey: "sk-bad", Endpoint: srv.URL}, discardLogger())
	require.NoError(t, err)

	_, err = client.Run(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestClient_Run_Cancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "event: text\ndata: {\"text\":\"start\"}\n\n")
		flusher.Flush()
		<-release // hold the stream open until the test is done
	}))
	t.Cleanup(func() { close(release); srv.Close() })

	client, err := NewClient(Config{APIKey: "sk-test", Endpoint: srv.URL}, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := client.Run(ctx, Request{Prompt: "hi"})
	require.NoError(t, err)

	// Consume the first event, then cancel mid-stream.
	first := <-ch
	require.Equal(t, KindText, first.Kind)
	cancel()

	events := collectEvents(t, ch)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, KindError, last.Kind)
	assert.Equal(t, "context cancelled", last.Err)
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{}, discardLogger())
	require.Error(t, err)
}

func TestNewClient_DefaultEndpoint(t *testing.T) {
	client, err := NewClient(Config{APIKey: "sk-test"}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, defaultEndpoint, client.cfg.Endpoint)
}
