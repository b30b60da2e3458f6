package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"persona-research/internal/domain/ports/adapter"
)

const fallbackEncoding = "cl100k_base"

// TokenCounter counts tokens with the BPE encoding of a model, falling back to
// cl100k_base for unknown models and to a length estimate when no encoding
// can be loaded.
type TokenCounter struct {
	mu   sync.Mutex
	encs map[string]*tiktoken.Tiktoken
}

func NewTokenCounter() *TokenCounter {
	return &TokenCounter{encs: make(map[string]*tiktoken.Tiktoken)}
}

func (c *TokenCounter) encoding(model string) *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encs[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			enc = nil
		}
	}
	c.encs[model] = enc
	return enc
}

// Count returns the token count of text under model's encoding.
func (c *TokenCounter) Count(model, text string) int {
	if text == "" {
		return 0
	}
	if enc := c.encoding(model); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (len([]rune(text)) + 3) / 4
}

// CountMessages approximates chat prompt tokens: content plus a small
// per-message framing overhead.
func (c *TokenCounter) CountMessages(model string, messages []adapter.Message) int {
	total := 3
	for _, m := range messages {
		total += 4 + c.Count(model, m.Content)
	}
	return total
}
