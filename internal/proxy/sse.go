package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// eventWriter frames Server-Sent Events and flushes each one immediately.
type eventWriter struct {
	w   io.Writer
	f   http.Flusher
	buf bytes.Buffer
}

func newEventWriter(w io.Writer, f http.Flusher) *eventWriter {
	return &eventWriter{w: w, f: f}
}

type contentEvent struct {
	Content string `json:"content"`
}

type errorEvent struct {
	Error string `json:"error"`
}

func (e *eventWriter) content(s string) error {
	return e.data(contentEvent{Content: s})
}

func (e *eventWriter) error(msg string) error {
	return e.data(errorEvent{Error: msg})
}

func (e *eventWriter) done() error {
	return e.write([]byte("data: [DONE]\n\n"))
}

func (e *eventWriter) data(v any) error {
	e.buf.Reset()
	e.buf.WriteString("data: ")
	enc := json.NewEncoder(&e.buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode ends the payload with one newline, the blank line ends the event.
	e.buf.WriteByte('\n')
	return e.write(e.buf.Bytes())
}

func (e *eventWriter) write(p []byte) error {
	if _, err := e.w.Write(p); err != nil {
		return err
	}
	e.f.Flush()
	return nil
}
