// Package conversation holds the chat front end's state as plain values.
// Event handlers return the next State; Render derives what to display.
package conversation

import (
	"errors"
	"strings"

	"chatrelay/message"
	"chatrelay/models"
	"chatrelay/stream"
)

var ErrTranscribing = errors.New("input is disabled while transcribing")

// Status of the in-progress exchange
type Status string

const (
	StatusReady     Status = "ready"
	StatusSubmitted Status = "submitted"
	StatusStreaming Status = "streaming"
	StatusError     Status = "error"
)

// Suggestions are canned prompts offered before the first message
var Suggestions = []string{
	"What are the latest trends in AI?",
	"How does machine learning work?",
	"Explain quantum computing",
	"Best practices for React development",
	"Tell me about TypeScript benefits",
	"How to optimize database queries?",
}

// State is everything the UI shows
type State struct {
	Messages  []message.Message
	Input     string
	ModelID   string
	Provider  models.ProviderType
	WebSearch bool

	Recording    bool
	Transcribing bool

	Status Status
	Err    string
}

// New returns the initial state with the catalogue's first model selected
func New(catalogue *models.ModelRegistry) State {
	s := State{
		ModelID:  models.DefaultModelID,
		Provider: models.DefaultProvider,
		Status:   StatusReady,
	}
	if first, ok := catalogue.First(); ok {
		s.ModelID = first.ID
		s.Provider = first.Provider
	}
	return s
}

// SelectModel switches model; the provider follows the catalogue
func (s State) SelectModel(catalogue *models.ModelRegistry, id string) State {
	s.ModelID = id
	s.Provider = catalogue.ProviderOf(id)
	return s
}

// ToggleWebSearch flips the search flag when the provider supports it
func (s State) ToggleWebSearch() State {
	if !s.Provider.SupportsWebSearch() {
		return s
	}
	s.WebSearch = !s.WebSearch
	return s
}

// EffectiveWebSearch is the flag sent with outgoing messages
func (s State) EffectiveWebSearch() bool {
	return s.WebSearch && s.Provider.SupportsWebSearch()
}

// SetInput replaces the input text
func (s State) SetInput(text string) (State, error) {
	if s.Transcribing {
		return s, ErrTranscribing
	}
	s.Input = text
	return s, nil
}

// metadata is the routing metadata for the next message
func (s State) metadata(withSearch bool) *message.Metadata {
	meta := &message.Metadata{ModelID: s.ModelID, Provider: string(s.Provider)}
	if withSearch {
		meta.UseWebSearch = s.EffectiveWebSearch()
	}
	return meta
}

// Submit turns the input into a user message. ok is false when there is
// nothing to send.
func (s State) Submit() (State, message.Message, bool) {
	if s.Transcribing || strings.TrimSpace(s.Input) == "" {
		return s, message.Message{}, false
	}
	msg := message.NewUserText(s.Input, s.metadata(true))
	s = s.appendOutgoing(msg)
	s.Input = ""
	return s, msg, true
}

// Suggest sends a canned prompt without touching the input
func (s State) Suggest(text string) (State, message.Message) {
	msg := message.NewUserText(text, s.metadata(true))
	return s.appendOutgoing(msg), msg
}

// AttachFile sends a file as a data URL. The metadata carries the model
// selection only.
func (s State) AttachFile(filename, mediaType string, data []byte) (State, message.Message) {
	msg := message.NewUserFile(filename, mediaType, data, s.metadata(false))
	return s.appendOutgoing(msg), msg
}

func (s State) appendOutgoing(msg message.Message) State {
	s.Messages = append(cloneMessages(s.Messages), msg)
	s.Status = StatusSubmitted
	s.Err = ""
	return s
}

// BeginTranscription marks the transcription call in flight
func (s State) BeginTranscription() State {
	s.Recording = false
	s.Transcribing = true
	return s
}

// EndTranscription re-enables input and fills it with non-empty text
func (s State) EndTranscription(text string) State {
	s.Transcribing = false
	if text != "" {
		s.Input = text
	}
	return s
}

// Apply appends a streamed chunk to the in-progress assistant message
func (s State) Apply(c stream.Chunk) State {
	s.Messages = cloneMessages(s.Messages)

	if needsAssistant(s.Messages, c) {
		id := c.MessageID
		if id == "" {
			id = message.NewID()
		}
		s.Messages = append(s.Messages, message.Message{ID: id, Role: message.RoleAssistant})
	}
	s.Status = StatusStreaming

	last := &s.Messages[len(s.Messages)-1]
	last.Parts = append([]message.Part(nil), last.Parts...)

	switch c.Type {
	case stream.ChunkTextStart:
		last.Parts = append(last.Parts, message.Part{Type: message.PartText})
	case stream.ChunkReasoningStart:
		last.Parts = append(last.Parts, message.Part{Type: message.PartReasoning})
	case stream.ChunkTextDelta:
		appendDelta(last, message.PartText, c.Delta)
	case stream.ChunkReasoningDelta:
		appendDelta(last, message.PartReasoning, c.Delta)
	case stream.ChunkSourceURL:
		last.Parts = append(last.Parts, message.Part{Type: message.PartSourceURL, SourceID: c.SourceID, URL: c.URL, Title: c.Title})
	case stream.ChunkSourceDocument:
		last.Parts = append(last.Parts, message.Part{Type: message.PartSourceDocument, SourceID: c.SourceID, URL: c.URL, Title: c.Title, MediaType: c.MediaType, Filename: c.Filename})
	case stream.ChunkToolResult:
		last.Parts = append(last.Parts, message.Part{Type: message.PartToolResult, ToolCallID: c.ToolCallID, ToolName: c.ToolName, Result: c.Result})
	case stream.ChunkFinish:
		s.Status = StatusReady
	case stream.ChunkError:
		s.Status = StatusError
		s.Err = c.ErrorText
	}
	return s
}

// Fail marks the exchange as interrupted
func (s State) Fail(err error) State {
	s.Status = StatusError
	if err != nil {
		s.Err = err.Error()
	}
	return s
}

// Finish marks the exchange complete unless it already failed
func (s State) Finish() State {
	if s.Status != StatusError {
		s.Status = StatusReady
	}
	return s
}

// needsAssistant reports whether c starts a new assistant message
func needsAssistant(msgs []message.Message, c stream.Chunk) bool {
	if len(msgs) == 0 {
		return true
	}
	last := msgs[len(msgs)-1]
	if last.Role != message.RoleAssistant {
		return true
	}
	return c.Type == stream.ChunkStart && c.MessageID != last.ID
}

// appendDelta extends the latest part of kind, opening one when missing
func appendDelta(m *message.Message, kind message.PartType, delta string) {
	for i := len(m.Parts) - 1; i >= 0; i-- {
		if m.Parts[i].Type == kind {
			m.Parts[i].Text += delta
			return
		}
	}
	m.Parts = append(m.Parts, message.Part{Type: kind, Text: delta})
}

func cloneMessages(msgs []message.Message) []message.Message {
	return append([]message.Message(nil), msgs...)
}
