package main

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"chatrelay/message"
	"chatrelay/providers"
	"chatrelay/routing"
)

func TestToProviderMessagesSkipsEmpty(t *testing.T) {
	msgs := []message.Message{
		{ID: "a", Role: message.RoleAssistant, Parts: []message.Part{{Type: message.PartReasoning, Text: "only thoughts"}}},
		{ID: "u", Role: message.RoleUser, Parts: []message.Part{
			{Type: message.PartText, Text: "look "},
			{Type: message.PartText, Text: "here"},
			{Type: message.PartFile, URL: "not a data url", Filename: "broken.png"},
		}},
	}

	out := toProviderMessages(msgs)
	assert.Equal(t, []providers.Message{{Role: "user", Content: "look here"}}, out)
	assert.Equal(t, "user: look here\n", flattenInput(out))
}

func TestStreamErrorText(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want string
	}{
		{&providers.UpstreamError{Provider: "openai", StatusCode: 429, Message: "Rate limit reached"}, "Rate limit reached"},
		{fmt.Errorf("stream: %w", context.DeadlineExceeded), "Request timed out"},
		{fmt.Errorf("%w: google", routing.ErrProviderNotConfigured), "provider not configured: google"},
		{fmt.Errorf("connection reset"), "An error occurred while generating the response"},
	} {
		assert.Equal(t, tc.want, streamErrorText(tc.err))
	}
}

func TestGenerateRequestIDIsUnique(t *testing.T) {
	a, b := generateRequestID(), generateRequestID()
	assert.NotEqual(t, a, b)
	assert.Len(t, generateSignature("x"), 16)
	assert.Zero(t, countTokens("", "gpt-5-mini"))
}
