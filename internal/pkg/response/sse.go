package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	SSEDone        = "[DONE]"
	sseErrorPrefix = "[ERROR] "
)

// SSE writes server-sent events and flushes after every event.
type SSE struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSE sends the event-stream headers. It fails when w cannot flush.
func NewSSE(w http.ResponseWriter) (*SSE, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &SSE{w: w, flusher: flusher}, nil
}

// Data writes one event. Multi-line payloads become several data lines of the
// same event, which clients join back with newlines.
func (s *SSE) Data(payload string) error {
	var b strings.Builder
	for _, line := range strings.Split(payload, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if _, err := fmt.Fprint(s.w, b.String()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *SSE) Done() error {
	return s.Data(SSEDone)
}

// Fail ends the stream with an error event. Newlines in reason are flattened
// so the error stays a single data line.
func (s *SSE) Fail(reason string) error {
	return s.Data(sseErrorPrefix + strings.ReplaceAll(reason, "\n", " "))
}
