package llm

import (
	"context"
	"errors"
	"fmt"

	"rodeoai/internal/config"
	"rodeoai/internal/logger"
	"rodeoai/internal/repository/db"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"
)

// ErrNotConfigured is returned when no API key is set
var ErrNotConfigured = errors.New("OPENAI_API_KEY not configured")

// OpenAIRelay implements Relay against an OpenAI-compatible chat completions API
type OpenAIRelay struct {
	client     openai.Client
	configured bool
}

// NewOpenAIRelay creates a relay from the LLM config. Requests are never retried.
func NewOpenAIRelay(llmConfig config.LLMConfig) *OpenAIRelay {
	opts := []option.RequestOption{
		option.WithAPIKey(llmConfig.OpenAIAPIKey),
		option.WithMaxRetries(0),
	}
	if llmConfig.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(llmConfig.BaseURL))
	}

	return &OpenAIRelay{
		client:     openai.NewClient(opts...),
		configured: llmConfig.OpenAIAPIKey != "",
	}
}

func (r *OpenAIRelay) params(req CompletionRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case db.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case db.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

// Complete sends a non-streaming chat completion request
func (r *OpenAIRelay) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if !r.configured {
		return nil, ErrNotConfigured
	}

	logger.Log.WithFields(logrus.Fields{
		"model":         req.Model,
		"message_count": len(req.Messages),
		"max_tokens":    req.MaxTokens,
	}).Info("Calling completion API")

	resp, err := r.client.Chat.Completions.New(ctx, r.params(req))
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from API")
	}

	return &Completion{
		Content: resp.Choices[0].Message.Content,
		Usage: &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// Stream sends a streaming chat completion request with usage reporting enabled
func (r *OpenAIRelay) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	if !r.configured {
		return nil, ErrNotConfigured
	}

	logger.Log.WithFields(logrus.Fields{
		"model":         req.Model,
		"message_count": len(req.Messages),
		"max_tokens":    req.MaxTokens,
	}).Info("Calling completion API (streaming)")

	params := r.params(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := r.client.Chat.Completions.NewStreaming(ctx, params)

	// Create channel to stream chunks
	chunks := make(chan StreamChunk)

	go func() {
		defer close(chunks)
		defer stream.Close()

		send := func(c StreamChunk) bool {
			select {
			case chunks <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for stream.Next() {
			chunk := stream.Current()

			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				if !send(StreamChunk{Content: chunk.Choices[0].Delta.Content}) {
					return
				}
			}

			if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
				usage := &Usage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
				}
				if !send(StreamChunk{Usage: usage}) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil && ctx.Err() == nil {
			logger.Log.WithError(err).Warn("Completion stream failed")
			send(StreamChunk{Err: fmt.Errorf("completion stream failed: %w", err)})
		}
	}()

	return chunks, nil
}
