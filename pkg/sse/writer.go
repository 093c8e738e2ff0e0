package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
)

// Event names emitted over the answer stream, in protocol order.
const (
	EventAnswerStart = "answer_start"
	EventAnswerDelta = "answer_delta"
	EventSources     = "sources"
	EventAnswerEnd   = "answer_end"
	EventError       = "error"
)

// EventSink receives named events with a JSON-serializable payload.
type EventSink interface {
	Send(event string, payload interface{}) error
}

// Writer encodes events in the text/event-stream format and flushes
// after every event so deltas reach the client immediately.
type Writer struct {
	w *bufio.Writer
}

var _ EventSink = &Writer{}

func NewWriter(w *bufio.Writer) *Writer {
	return &Writer{w: w}
}

func (s *Writer) Send(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("write %s event: %w", event, err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush %s event: %w", event, err)
	}
	return nil
}
