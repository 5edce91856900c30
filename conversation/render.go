package conversation

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"chatrelay/message"
)

// View is the displayable form of one message
type View struct {
	ID      string
	Role    message.Role
	Parts   []message.Part // text and reasoning only
	Files   []message.Part
	Sources []message.Source
}

// Render separates displayable parts from citations for every message.
// It has no side effects.
func Render(s State) []View {
	views := make([]View, 0, len(s.Messages))
	for _, m := range s.Messages {
		v := View{ID: m.ID, Role: m.Role}
		for _, p := range m.Parts {
			switch p.Type {
			case message.PartText, message.PartReasoning:
				v.Parts = append(v.Parts, p)
			case message.PartFile:
				v.Files = append(v.Files, p)
			}
		}
		if m.Role == message.RoleAssistant {
			v.Sources = Sources(m)
		}
		views = append(views, v)
	}
	return views
}

// Sources collects citations from streamed source parts followed by web
// search tool results, keeping the first occurrence of each href
func Sources(m message.Message) []message.Source {
	var candidates []message.Source
	for _, p := range m.Parts {
		switch p.Type {
		case message.PartSourceURL, message.PartSourceDocument:
			if p.URL == "" {
				continue
			}
			title := p.Title
			if title == "" {
				title = p.URL
			}
			candidates = append(candidates, message.Source{Title: title, Href: p.URL})
		}
	}
	for _, p := range m.Parts {
		if p.Type == message.PartToolResult && p.ToolName == message.WebSearchTool {
			candidates = append(candidates, searchHits(p.Result)...)
		}
	}

	seen := make(map[string]bool, len(candidates))
	var out []message.Source
	for _, c := range candidates {
		if c.Href == "" || seen[c.Href] {
			continue
		}
		seen[c.Href] = true
		out = append(out, c)
	}
	return out
}

// searchHits reads results[]{title,url} from a tool result that is either
// a JSON object or a JSON string holding one
func searchHits(raw json.RawMessage) []message.Source {
	if len(raw) == 0 {
		return nil
	}
	result := gjson.ParseBytes(raw)
	if result.Type == gjson.String {
		if !gjson.Valid(result.Str) {
			return nil
		}
		result = gjson.Parse(result.Str)
	}

	var hits []message.Source
	result.Get("results").ForEach(func(_, r gjson.Result) bool {
		hits = append(hits, message.Source{
			Title: r.Get("title").String(),
			Href:  r.Get("url").String(),
		})
		return true
	})
	return hits
}
