// Package tokenizer counts and truncates text in model tokens (cl100k_base).
package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding matches the chat model family.
const DefaultEncoding = "cl100k_base"

var loaderOnce sync.Once

// Tokenizer is a deterministic BPE tokenizer. Safe for concurrent use.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New loads an encoding from the embedded offline BPE ranks.
func New(encoding string) (*Tokenizer, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &Tokenizer{enc: enc}, nil
}

// Count returns the token count of text.
func (t *Tokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Truncate returns the longest prefix of text that fits in limit tokens.
func (t *Tokenizer) Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	ids := t.enc.Encode(text, nil, nil)
	if len(ids) <= limit {
		return text
	}
	for n := limit; n > 0; n-- {
		// a cut inside a multi-byte rune decodes to invalid UTF-8
		out := strings.ToValidUTF8(t.enc.Decode(ids[:n]), "")
		if t.Count(out) <= limit {
			return out
		}
	}
	return ""
}
