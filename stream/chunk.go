// Package stream encodes and decodes the UI message stream: server-sent
// events whose data fields carry one JSON chunk each, terminated by [DONE].
package stream

import (
	"encoding/json"
)

// ChunkType tags a Chunk
type ChunkType string

const (
	ChunkStart          ChunkType = "start"
	ChunkStartStep      ChunkType = "start-step"
	ChunkReasoningStart ChunkType = "reasoning-start"
	ChunkReasoningDelta ChunkType = "reasoning-delta"
	ChunkReasoningEnd   ChunkType = "reasoning-end"
	ChunkTextStart      ChunkType = "text-start"
	ChunkTextDelta      ChunkType = "text-delta"
	ChunkTextEnd        ChunkType = "text-end"
	ChunkSourceURL      ChunkType = "source-url"
	ChunkSourceDocument ChunkType = "source-document"
	ChunkToolResult     ChunkType = "tool-result"
	ChunkFinishStep     ChunkType = "finish-step"
	ChunkFinish         ChunkType = "finish"
	ChunkError          ChunkType = "error"
)

// DoneMarker is the data of the final event
const DoneMarker = "[DONE]"

// HeaderName identifies the protocol version to clients
const (
	HeaderName    = "x-vercel-ai-ui-message-stream"
	HeaderVersion = "v1"
)

// Chunk is one event of the UI message stream
type Chunk struct {
	Type ChunkType `json:"type"`

	// start
	MessageID string `json:"messageId,omitempty"`

	// text-*, reasoning-*
	ID    string `json:"id,omitempty"`
	Delta string `json:"delta,omitempty"`

	// source-url, source-document
	SourceID  string `json:"sourceId,omitempty"`
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	Filename  string `json:"filename,omitempty"`

	// tool-result
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`

	// error
	ErrorText string `json:"errorText,omitempty"`
}
