package main

import (
	"log"
	"strings"

	"chatrelay/message"
	"chatrelay/providers"
)

// LLMResponse contains the relayed reply and metadata from one turn
type LLMResponse struct {
	Input        string // flattened history
	Content      string
	Reasoning    string
	Sources      int
	InputTokens  int // counted only when auditing
	OutputTokens int
	InputHash    string
	OutputHash   string
}

// toProviderMessages translates the UI history into provider messages.
// Text parts are concatenated; files are decoded from their data URLs;
// reasoning, sources and tool results stay on the client.
func toProviderMessages(msgs []message.Message) []providers.Message {
	out := make([]providers.Message, 0, len(msgs))
	for _, m := range msgs {
		pm := providers.Message{Role: string(m.Role)}

		var text strings.Builder
		for _, p := range m.Parts {
			switch p.Type {
			case message.PartText:
				text.WriteString(p.Text)
			case message.PartFile:
				mediaType, data, err := message.ParseDataURL(p.URL)
				if err != nil {
					log.Printf("[HandleChat] Dropping file %q: %v", p.Filename, err)
					continue
				}
				if p.MediaType != "" {
					mediaType = p.MediaType
				}
				pm.Files = append(pm.Files, providers.File{MediaType: mediaType, Filename: p.Filename, Data: data})
			}
		}
		pm.Content = text.String()

		if pm.Content == "" && len(pm.Files) == 0 {
			continue
		}
		out = append(out, pm)
	}
	return out
}

// flattenInput renders provider messages as text for hashing and token counts
func flattenInput(msgs []providers.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		for _, f := range m.Files {
			b.WriteString(" [file ")
			b.WriteString(f.MediaType)
			b.WriteString("]")
		}
		b.WriteString("\n")
	}
	return b.String()
}
