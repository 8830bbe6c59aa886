package llm

import "context"

// Message is one role/content pair sent upstream
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage is the token accounting reported by the upstream API
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// Total returns prompt plus completion tokens
func (u Usage) Total() int64 {
	return u.PromptTokens + u.CompletionTokens
}

// CompletionRequest is a fully assembled upstream call
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Completion is the result of a non-streaming call
type Completion struct {
	Content string
	Usage   *Usage
}

// StreamChunk is one event from a streaming call. Exactly one field is set.
// A chunk with Err is always the last one on the channel.
type StreamChunk struct {
	Content string
	Usage   *Usage
	Err     error
}

// Relay forwards assembled prompts to a completion API
type Relay interface {
	// Complete sends the request and waits for the whole answer
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// Stream sends the request and delivers fragments as they arrive. The channel is
	// closed when the upstream stream ends or ctx is cancelled.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
}
