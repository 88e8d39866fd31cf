// Package tokens provides token counting and token-bounded truncation for
// prompt assembly. It wraps tiktoken and degrades to a character heuristic
// when the encoding tables cannot be loaded.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// approxCharsPerToken is used when no encoder is available.
const approxCharsPerToken = 4

// Counter counts and truncates text by token count.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter creates a counter for the given model name, falling back to
// resolving the name as an encoding name.
func NewCounter(name string) (*Counter, error) {
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		enc, err = tiktoken.GetEncoding(name)
		if err != nil {
			return nil, err
		}
	}
	return &Counter{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Truncate returns text cut to at most maxTokens tokens.
func (c *Counter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	ids := c.enc.Encode(text, nil, nil)
	if len(ids) <= maxTokens {
		return text
	}
	return c.enc.Decode(ids[:maxTokens])
}

var (
	once sync.Once
	def  *Counter
)

func defaultCounter() *Counter {
	once.Do(func() {
		if c, err := NewCounter("cl100k_base"); err == nil {
			def = c
		}
	})
	return def
}

// Count counts tokens using the shared default encoding.
func Count(text string) int {
	if c := defaultCounter(); c != nil {
		return c.Count(text)
	}
	return (len(text) + approxCharsPerToken - 1) / approxCharsPerToken
}

// Clip truncates text to at most maxTokens tokens using the shared default
// encoding, approximating by characters when the encoder is unavailable.
func Clip(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if c := defaultCounter(); c != nil {
		return c.Truncate(text, maxTokens)
	}
	limit := maxTokens * approxCharsPerToken
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// ClipRunes truncates text to at most n runes. It is the plain character
// fallback used where byte slicing would split multi-byte runes.
func ClipRunes(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
