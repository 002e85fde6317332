package httpapi

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/fetch"
)

// StateEvent is one frame read from a state stream. Err is set when the frame
// could not be decoded; the reader keeps going after that.
type StateEvent struct {
	State fetch.State
	Err   error
}

// sseWriter writes Server-Sent Events to an http.ResponseWriter.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	f, _ := w.(http.Flusher)
	return &sseWriter{w: w, flusher: f}
}

// init sets the stream headers and flushes them. Call once before writeState.
func (sw *sseWriter) init() {
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	sw.w.WriteHeader(http.StatusOK)
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
}

// writeState writes s as a single "data: {json}\n\n" frame and flushes.
func (sw *sseWriter) writeState(s fetch.State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("sse: marshal state: %w", err)
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("sse: write state: %w", err)
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// ReadStates parses a state stream from body and delivers each frame on the
// returned channel. The channel is closed when the body ends, a read error
// occurs, or ctx is done; body is closed when reading stops.
//
// Lines starting with ":" are comments. Consecutive "data:" lines are joined
// with newlines and decoded when a blank line ends the frame. Other fields
// are ignored.
func ReadStates(ctx context.Context, body io.ReadCloser) <-chan StateEvent {
	ch := make(chan StateEvent)
	go func() {
		defer close(ch)
		defer body.Close()

		stop := context.AfterFunc(ctx, func() { body.Close() })
		defer stop()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		var data strings.Builder

		flush := func() bool {
			if data.Len() == 0 {
				return true
			}
			ok := emitState(ctx, ch, data.String())
			data.Reset()
			return ok
		}

		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				if !flush() {
					return
				}
			case strings.HasPrefix(line, ":"):
			case strings.HasPrefix(line, "data:"):
				payload := strings.TrimPrefix(line, "data:")
				payload = strings.TrimPrefix(payload, " ")
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(payload)
			}
		}
		if ctx.Err() == nil {
			flush()
		}
	}()
	return ch
}

func emitState(ctx context.Context, ch chan<- StateEvent, raw string) bool {
	var ev StateEvent
	if err := json.Unmarshal([]byte(raw), &ev.State); err != nil {
		ev = StateEvent{Err: fmt.Errorf("sse: unmarshal state: %w", err)}
	}
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
