package llm

import (
	"unicode/utf8"

	"rodeoai/internal/logger"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sirupsen/logrus"
)

// perMessageOverhead approximates the framing tokens chat APIs add per message
const perMessageOverhead = 4

// TokenCounter estimates token counts when the upstream API reports none
type TokenCounter interface {
	Count(text string) int64
}

// CountMessages estimates the prompt tokens for a message list
func CountMessages(c TokenCounter, messages []Message) int64 {
	var total int64
	for _, m := range messages {
		total += c.Count(m.Content) + perMessageOverhead
	}
	return total
}

// TiktokenCounter counts with a BPE encoding
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// Count returns the number of BPE tokens in text
func (c *TiktokenCounter) Count(text string) int64 {
	return int64(len(c.enc.Encode(text, nil, nil)))
}

// EstimateCounter assumes roughly four characters per token
type EstimateCounter struct{}

// Count returns ceil(runes/4)
func (EstimateCounter) Count(text string) int64 {
	n := utf8.RuneCountInString(text)
	return int64((n + 3) / 4)
}

// NewTokenCounter loads the named encoding, falling back to EstimateCounter when it
// cannot be loaded.
func NewTokenCounter(encoding string) TokenCounter {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"encoding": encoding, "error": err}).Warn("Token encoding unavailable, using estimate")
		return EstimateCounter{}
	}
	return &TiktokenCounter{enc: enc}
}
