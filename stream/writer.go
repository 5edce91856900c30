package stream

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tmaxmax/go-sse"

	"chatrelay/message"
)

// Writer emits a UI message stream for one assistant message. Text and
// reasoning blocks are opened on their first delta and closed when the
// other kind starts or the message ends.
type Writer struct {
	session *sse.Session

	messageID   string
	textID      string
	reasoningID string
	started     bool
	closed      bool
}

// NewWriter upgrades the response to an event stream. Headers are written
// with the first event.
func NewWriter(w http.ResponseWriter, r *http.Request) (*Writer, error) {
	h := w.Header()
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set(HeaderName, HeaderVersion)

	session, err := sse.Upgrade(w, r)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade to event stream: %w", err)
	}
	return &Writer{session: session}, nil
}

// Write sends a single chunk and flushes it
func (w *Writer) Write(c Chunk) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal %s chunk: %w", c.Type, err)
	}
	return w.send(string(data))
}

func (w *Writer) send(data string) error {
	if w.closed {
		return fmt.Errorf("stream already closed")
	}
	m := &sse.Message{}
	m.AppendData(data)
	if err := w.session.Send(m); err != nil {
		return err
	}
	return w.session.Flush()
}

// Start opens the message and its single step
func (w *Writer) Start(messageID string) error {
	if w.started {
		return nil
	}
	w.started = true
	w.messageID = messageID
	if err := w.Write(Chunk{Type: ChunkStart, MessageID: messageID}); err != nil {
		return err
	}
	return w.Write(Chunk{Type: ChunkStartStep})
}

// MessageID returns the id sent in the start chunk
func (w *Writer) MessageID() string {
	return w.messageID
}

// Text appends a text delta
func (w *Writer) Text(delta string) error {
	if delta == "" {
		return nil
	}
	if err := w.endReasoning(); err != nil {
		return err
	}
	if w.textID == "" {
		w.textID = message.NewID()
		if err := w.Write(Chunk{Type: ChunkTextStart, ID: w.textID}); err != nil {
			return err
		}
	}
	return w.Write(Chunk{Type: ChunkTextDelta, ID: w.textID, Delta: delta})
}

// Reasoning appends a reasoning delta
func (w *Writer) Reasoning(delta string) error {
	if delta == "" {
		return nil
	}
	if err := w.endText(); err != nil {
		return err
	}
	if w.reasoningID == "" {
		w.reasoningID = message.NewID()
		if err := w.Write(Chunk{Type: ChunkReasoningStart, ID: w.reasoningID}); err != nil {
			return err
		}
	}
	return w.Write(Chunk{Type: ChunkReasoningDelta, ID: w.reasoningID, Delta: delta})
}

// Source emits a URL citation
func (w *Writer) Source(sourceID, url, title string) error {
	if sourceID == "" {
		sourceID = message.NewID()
	}
	return w.Write(Chunk{Type: ChunkSourceURL, SourceID: sourceID, URL: url, Title: title})
}

// ToolResult emits the structured result of a hosted tool call
func (w *Writer) ToolResult(toolCallID, toolName string, result json.RawMessage) error {
	return w.Write(Chunk{Type: ChunkToolResult, ToolCallID: toolCallID, ToolName: toolName, Result: result})
}

// Error closes any open block and reports a terminal error
func (w *Writer) Error(text string) error {
	if err := w.endBlocks(); err != nil {
		return err
	}
	return w.Write(Chunk{Type: ChunkError, ErrorText: text})
}

// Finish closes open blocks, the step and the message
func (w *Writer) Finish() error {
	if err := w.endBlocks(); err != nil {
		return err
	}
	if err := w.Write(Chunk{Type: ChunkFinishStep}); err != nil {
		return err
	}
	return w.Write(Chunk{Type: ChunkFinish})
}

// Close writes the terminating [DONE] event. Further writes fail.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	err := w.send(DoneMarker)
	w.closed = true
	return err
}

func (w *Writer) endBlocks() error {
	if err := w.endText(); err != nil {
		return err
	}
	return w.endReasoning()
}

func (w *Writer) endText() error {
	if w.textID == "" {
		return nil
	}
	id := w.textID
	w.textID = ""
	return w.Write(Chunk{Type: ChunkTextEnd, ID: id})
}

func (w *Writer) endReasoning() error {
	if w.reasoningID == "" {
		return nil
	}
	id := w.reasoningID
	w.reasoningID = ""
	return w.Write(Chunk{Type: ChunkReasoningEnd, ID: id})
}
