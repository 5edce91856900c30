package main

import (
	"crypto/sha256"
	"fmt"
	"log"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
)

// generateSignature creates a hash signature for content, used to match
// audit entries without storing the text twice
func generateSignature(content string) string {
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)[:16] // First 16 chars of hash
}

// generateRequestID returns a unique id for one relayed turn
func generateRequestID() string {
	return "req_" + uuid.NewString()
}

var (
	encodingsMu sync.Mutex
	encodings   = map[string]*tiktoken.Tiktoken{}
	// failed encodings are not retried; loading may need the network
	encodingFailed = map[string]bool{}
)

// encodingFor returns the tokenizer for a model, or nil when none can be
// loaded
func encodingFor(model string) *tiktoken.Tiktoken {
	encodingsMu.Lock()
	defer encodingsMu.Unlock()

	if enc, ok := encodings[model]; ok {
		return enc
	}
	if encodingFailed[model] {
		return nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(tiktoken.MODEL_O200K_BASE)
	}
	if err != nil {
		if debugMode {
			log.Printf("[countTokens] No tokenizer for %s: %v", model, err)
		}
		encodingFailed[model] = true
		return nil
	}
	encodings[model] = enc
	return enc
}

// countTokens counts tokens with the model's tokenizer, estimating four
// characters per token when no tokenizer is available
func countTokens(text, model string) int {
	if text == "" {
		return 0
	}
	if enc := encodingFor(model); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}
