package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// auditLog records complete exchanges in SQLite. It only exists when
// ENABLE_LLM_AUDIT=true; the default deployment keeps no durable state.
type auditLog struct {
	db *sql.DB
}

// LLMAuditEntry represents a complete LLM interaction
type LLMAuditEntry struct {
	ID           int64     `json:"id"`
	RequestID    string    `json:"request_id"`
	Timestamp    time.Time `json:"timestamp"`
	Model        string    `json:"model"`
	Provider     string    `json:"provider"`
	WebSearch    bool      `json:"web_search"`
	FullInput    string    `json:"full_input"` // JSON encoded
	FullOutput   string    `json:"full_output"`
	Reasoning    string    `json:"reasoning,omitempty"`
	Sources      int       `json:"sources"`
	InputHash    string    `json:"input_hash"`
	OutputHash   string    `json:"output_hash"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Error        string    `json:"error,omitempty"`
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS llm_audit (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
	model TEXT NOT NULL,
	provider TEXT,
	web_search BOOLEAN,
	full_input TEXT NOT NULL,
	full_output TEXT NOT NULL,
	input_tokens INTEGER,
	output_tokens INTEGER,
	error TEXT
);

CREATE INDEX IF NOT EXISTS idx_request_id ON llm_audit(request_id);
CREATE INDEX IF NOT EXISTS idx_timestamp ON llm_audit(timestamp);
CREATE INDEX IF NOT EXISTS idx_model ON llm_audit(model);
`

// auditColumns are added to databases created before they existed
var auditColumns = []struct{ name, decl string }{
	{"reasoning", "TEXT NOT NULL DEFAULT ''"},
	{"sources", "INTEGER NOT NULL DEFAULT 0"},
	{"input_hash", "TEXT NOT NULL DEFAULT ''"},
	{"output_hash", "TEXT NOT NULL DEFAULT ''"},
}

// openAuditLog opens (creating when needed) the audit database at path
func openAuditLog(path string) (*auditLog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if _, err := db.Exec(auditSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit schema: %w", err)
	}
	if err := migrateAuditColumns(db); err != nil {
		db.Close()
		return nil, err
	}
	log.Printf("[AUDIT] LLM audit database initialized at %s", path)
	return &auditLog{db: db}, nil
}

func migrateAuditColumns(db *sql.DB) error {
	rows, err := db.Query(`SELECT name FROM pragma_table_info('llm_audit')`)
	if err != nil {
		return fmt.Errorf("failed to read audit schema: %w", err)
	}
	existing := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("failed to read audit schema: %w", err)
		}
		existing[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read audit schema: %w", err)
	}

	for _, col := range auditColumns {
		if existing[col.name] {
			continue
		}
		if _, err := db.Exec(fmt.Sprintf(`ALTER TABLE llm_audit ADD COLUMN %s %s`, col.name, col.decl)); err != nil {
			return fmt.Errorf("failed to add audit column %s: %w", col.name, err)
		}
	}
	return nil
}

// Close closes the database
func (a *auditLog) Close() error {
	return a.db.Close()
}

// LogLLMInteraction records one exchange. Failures are logged, never
// surfaced to the caller.
func (a *auditLog) LogLLMInteraction(requestID, model, provider string, webSearch bool, input any, response *LLMResponse, err error) {
	if a == nil {
		return
	}
	if response == nil {
		response = &LLMResponse{}
	}

	inputJSON, jsonErr := json.Marshal(input)
	if jsonErr != nil {
		log.Printf("[AUDIT] Failed to marshal input: %v", jsonErr)
		inputJSON = []byte(fmt.Sprintf("Error marshaling input: %v", jsonErr))
	}

	errorStr := ""
	if err != nil {
		errorStr = err.Error()
	}

	result, dbErr := a.db.Exec(`
		INSERT INTO llm_audit (
			request_id, model, provider, web_search,
			full_input, full_output, reasoning, sources,
			input_hash, output_hash, input_tokens, output_tokens, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		requestID, model, provider, webSearch,
		string(inputJSON), response.Content, response.Reasoning, response.Sources,
		response.InputHash, response.OutputHash, response.InputTokens, response.OutputTokens, errorStr)
	if dbErr != nil {
		log.Printf("[AUDIT] Failed to log LLM interaction: %v", dbErr)
		return
	}

	id, _ := result.LastInsertId()
	log.Printf("[AUDIT] Logged LLM interaction ID=%d, RequestID=%s, Model=%s, InputLen=%d, OutputLen=%d",
		id, requestID, model, len(inputJSON), len(response.Content))
}

// GetRequestHistory retrieves the entries recorded for a request id
func (a *auditLog) GetRequestHistory(requestID string) ([]LLMAuditEntry, error) {
	rows, err := a.db.Query(`
		SELECT id, request_id, timestamp, model, provider, web_search,
		       full_input, full_output, reasoning, sources,
		       input_hash, output_hash, input_tokens, output_tokens, error
		FROM llm_audit
		WHERE request_id = ?
		ORDER BY id ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LLMAuditEntry
	for rows.Next() {
		var entry LLMAuditEntry
		err := rows.Scan(
			&entry.ID, &entry.RequestID, &entry.Timestamp,
			&entry.Model, &entry.Provider, &entry.WebSearch,
			&entry.FullInput, &entry.FullOutput, &entry.Reasoning, &entry.Sources,
			&entry.InputHash, &entry.OutputHash,
			&entry.InputTokens, &entry.OutputTokens, &entry.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
