package message

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Role of a message author
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PartType tags the variant carried by a Part
type PartType string

const (
	PartText           PartType = "text"
	PartReasoning      PartType = "reasoning"
	PartSourceURL      PartType = "source-url"
	PartSourceDocument PartType = "source-document"
	PartToolResult     PartType = "tool-result"
	PartFile           PartType = "file"
)

// WebSearchTool is the name of the hosted search tool whose results carry citations
const WebSearchTool = "web_search_preview"

// Message is one turn of a conversation as exchanged with the browser
type Message struct {
	ID       string    `json:"id"`
	Role     Role      `json:"role"`
	Parts    []Part    `json:"parts"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// Metadata carries routing hints attached to the most recent message
type Metadata struct {
	ModelID      string `json:"modelId,omitempty"`
	Provider     string `json:"provider,omitempty"`
	UseWebSearch bool   `json:"useWebSearch,omitempty"`
}

// Part is a tagged union keyed by Type. Only the fields of the active
// variant are populated.
type Part struct {
	Type PartType `json:"type"`

	// text, reasoning
	Text string `json:"text,omitempty"`

	// source-url, source-document
	SourceID string `json:"sourceId,omitempty"`
	Title    string `json:"title,omitempty"`

	// source-url, file (data URL)
	URL string `json:"url,omitempty"`

	// source-document, file
	MediaType string `json:"mediaType,omitempty"`
	Filename  string `json:"filename,omitempty"`

	// tool-result
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// Source is a citation derived from message parts. It is never stored.
type Source struct {
	Title string `json:"title"`
	Href  string `json:"href"`
}

// NewID returns an identifier for messages and stream parts
func NewID() string {
	return "msg_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewUserText builds a user message holding a single text part
func NewUserText(text string, meta *Metadata) Message {
	return Message{
		ID:       NewID(),
		Role:     RoleUser,
		Parts:    []Part{{Type: PartText, Text: text}},
		Metadata: meta,
	}
}

// NewUserFile builds a user message holding a single file part encoded as a data URL
func NewUserFile(filename, mediaType string, data []byte, meta *Metadata) Message {
	return Message{
		ID:   NewID(),
		Role: RoleUser,
		Parts: []Part{{
			Type:      PartFile,
			URL:       DataURL(mediaType, data),
			MediaType: mediaType,
			Filename:  filename,
		}},
		Metadata: meta,
	}
}

// Text concatenates the text parts of the message
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// LastMetadata returns the metadata of the final message, or nil
func LastMetadata(msgs []Message) *Metadata {
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1].Metadata
}
