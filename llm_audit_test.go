package main

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/message"
)

func TestAuditLogRoundTrip(t *testing.T) {
	audit, err := openAuditLog(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer audit.Close()

	history := []message.Message{message.NewUserText("what is new?", nil)}
	answered := &LLMResponse{
		Content:      "plenty",
		Reasoning:    "checked the news",
		Sources:      2,
		InputTokens:  4,
		OutputTokens: 1,
		InputHash:    generateSignature("user: what is new?\n"),
		OutputHash:   generateSignature("plenty"),
	}
	audit.LogLLMInteraction("req_1", "gpt-5-mini", "openai", true, history, answered, nil)
	audit.LogLLMInteraction("req_1", "gpt-5-mini", "openai", true, history, &LLMResponse{InputTokens: 4}, errors.New("upstream exploded"))
	audit.LogLLMInteraction("req_2", "mixtral-8x7b-32768", "groq", false, history, &LLMResponse{Content: "other"}, nil)

	entries, err := audit.GetRequestHistory("req_1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "gpt-5-mini", entries[0].Model)
	assert.Equal(t, "openai", entries[0].Provider)
	assert.True(t, entries[0].WebSearch)
	assert.Equal(t, "plenty", entries[0].FullOutput)
	assert.Equal(t, "checked the news", entries[0].Reasoning)
	assert.Equal(t, 2, entries[0].Sources)
	assert.Equal(t, answered.InputHash, entries[0].InputHash)
	assert.Equal(t, answered.OutputHash, entries[0].OutputHash)
	assert.Len(t, entries[0].OutputHash, 16)
	assert.Equal(t, 4, entries[0].InputTokens)
	assert.Equal(t, 1, entries[0].OutputTokens)
	assert.Contains(t, entries[0].FullInput, "what is new?")
	assert.Empty(t, entries[0].Error)
	assert.False(t, entries[0].Timestamp.IsZero())

	assert.Equal(t, "upstream exploded", entries[1].Error)
	assert.Empty(t, entries[1].OutputHash)

	entries, err = audit.GetRequestHistory("req_missing")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAuditLogAddsColumnsToOlderDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(auditSchema)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO llm_audit (request_id, model, provider, web_search, full_input, full_output, input_tokens, output_tokens, error)
		VALUES ('req_old', 'gpt-4o-mini', 'openai', 0, '[]', 'before', 1, 1, '')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	audit, err := openAuditLog(path)
	require.NoError(t, err)
	defer audit.Close()

	audit.LogLLMInteraction("req_new", "gpt-4o-mini", "openai", false, nil, &LLMResponse{Content: "after", OutputHash: "abc"}, nil)

	old, err := audit.GetRequestHistory("req_old")
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, "before", old[0].FullOutput)
	assert.Empty(t, old[0].InputHash)

	fresh, err := audit.GetRequestHistory("req_new")
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "abc", fresh[0].OutputHash)

	// reopening leaves the migrated schema alone
	again, err := openAuditLog(path)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestAuditLogNilIsNoop(t *testing.T) {
	var audit *auditLog
	assert.NotPanics(t, func() {
		audit.LogLLMInteraction("req", "m", "p", false, nil, nil, nil)
	})
}
