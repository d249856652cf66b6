// Package tokens counts prompt and completion tokens for logging.
package tokens

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"slmchat/internal/domain"
)

// Counter counts tokens with the cl100k_base encoding. When the encoding
// cannot be loaded (it is fetched on first use) counts are estimated at
// four characters per token.
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter never fails; Exact reports whether a real encoding is in use.
func NewCounter() *Counter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &Counter{}
	}
	return &Counter{encoding: enc}
}

// Estimating returns a counter that never loads an encoding.
func Estimating() *Counter { return &Counter{} }

// Exact reports whether counts come from the tokenizer.
func (c *Counter) Exact() bool { return c != nil && c.encoding != nil }

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.Exact() {
		return len(c.encoding.Encode(text, nil, nil))
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}

// CountMessages sums Count over every message body.
func (c *Counter) CountMessages(messages []domain.Message) int {
	total := 0
	for _, m := range messages {
		total += c.Count(m.Content)
	}
	return total
}
