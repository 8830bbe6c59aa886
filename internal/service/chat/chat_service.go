package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rodeoai/internal/config"
	"rodeoai/internal/logger"
	"rodeoai/internal/ratelimit"
	"rodeoai/internal/repository/db"
	"rodeoai/internal/service/conversation"
	"rodeoai/internal/service/llm"
	"rodeoai/internal/service/quota"
	"rodeoai/internal/service/usage"

	"github.com/sirupsen/logrus"
)

var (
	// ErrEmptyMessage is returned when the user turn has no content
	ErrEmptyMessage = errors.New("message must not be empty")

	// ErrUpstream wraps failures of the completion API
	ErrUpstream = errors.New("upstream completion failed")

	// ErrFragmentTimeout is returned when the upstream goes silent for longer than the fragment timeout
	ErrFragmentTimeout = errors.New("upstream stopped responding")
)

const defaultFragmentTimeout = 60 * time.Second

// Status tags how a chat turn ended
type Status string

const (
	// StatusComplete means the upstream answer finished normally
	StatusComplete Status = "complete"
	// StatusPartial means the answer was cut short and what arrived was saved
	StatusPartial Status = "partial"
	// StatusFailed means the turn could not be persisted
	StatusFailed Status = "failed"
)

// Result is the bookkeeping outcome of one chat turn
type Result struct {
	Status         Status
	Err            error
	ConversationID int64
	MessageID      int64
	Model          string
	Usage          llm.Usage
	Cost           float64
	Estimated      bool
}

// SendMessageRequest contains all the parameters needed to send a message
type SendMessageRequest struct {
	User           *db.User
	Message        string
	ConversationID int64 // 0 starts a new conversation
	Model          string
	Persona        string
}

// SendMessageResponse contains the response from sending a message
type SendMessageResponse struct {
	Response       string
	ConversationID int64
	Model          string
	Result         *Result
}

// StreamMessageChunk represents a chunk of streaming response. The first chunk
// carries ConvID, the last one carries Result.
type StreamMessageChunk struct {
	Content string
	ConvID  int64
	Model   string
	Result  *Result
}

// Dependencies are the collaborators a ChatService drives
type Dependencies struct {
	Conversations   *conversation.ConversationService
	Quota           *quota.Engine
	Ledger          *usage.Ledger
	Relay           llm.Relay
	Counter         llm.TokenCounter
	Limiter         ratelimit.Limiter
	FragmentTimeout time.Duration
}

// ChatService handles the business logic for chat operations
type ChatService struct {
	conversations   *conversation.ConversationService
	quota           *quota.Engine
	ledger          *usage.Ledger
	relay           llm.Relay
	counter         llm.TokenCounter
	limiter         ratelimit.Limiter
	fragmentTimeout time.Duration
}

// NewChatService creates a new ChatService
func NewChatService(deps Dependencies) *ChatService {
	s := &ChatService{
		conversations:   deps.Conversations,
		quota:           deps.Quota,
		ledger:          deps.Ledger,
		relay:           deps.Relay,
		counter:         deps.Counter,
		limiter:         deps.Limiter,
		fragmentTimeout: deps.FragmentTimeout,
	}
	if s.counter == nil {
		s.counter = llm.EstimateCounter{}
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewNoopLimiter()
	}
	if s.fragmentTimeout <= 0 {
		s.fragmentTimeout = defaultFragmentTimeout
	}
	return s
}

// turn is an admitted request whose user message is already stored
type turn struct {
	user    *db.User
	conv    *db.Conversation
	model   config.Model
	prompt  []llm.Message
	release func()
}

func (t *turn) request() llm.CompletionRequest {
	return llm.CompletionRequest{
		Model:       t.model.UpstreamModel,
		Messages:    t.prompt,
		Temperature: t.model.Temperature,
		MaxTokens:   t.model.MaxTokens,
	}
}

// SendMessage processes a chat message and returns the whole LLM response
func (s *ChatService) SendMessage(ctx context.Context, req SendMessageRequest) (*SendMessageResponse, error) {
	t, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	defer t.release()

	callCtx, cancel := context.WithTimeout(ctx, s.fragmentTimeout)
	defer cancel()

	var content string
	var reported *llm.Usage
	completion, upstreamErr := s.relay.Complete(callCtx, t.request())
	if upstreamErr == nil {
		content = completion.Content
		reported = completion.Usage
	} else if errors.Is(upstreamErr, context.DeadlineExceeded) && ctx.Err() == nil {
		upstreamErr = ErrFragmentTimeout
	}

	result := s.finalize(context.WithoutCancel(ctx), t, content, reported, upstreamErr)
	if result.Status == StatusFailed {
		return nil, result.Err
	}
	if upstreamErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, upstreamErr)
	}

	return &SendMessageResponse{
		Response:       content,
		ConversationID: t.conv.ID,
		Model:          string(t.model.ID),
		Result:         result,
	}, nil
}

// SendMessageStream processes a chat message and streams the LLM response.
// Admission and storage of the user turn happen before it returns; the answer,
// its bookkeeping and the final Result are delivered on the channel.
func (s *ChatService) SendMessageStream(ctx context.Context, req SendMessageRequest) (<-chan StreamMessageChunk, error) {
	t, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	outputChan := make(chan StreamMessageChunk)

	go func() {
		defer close(outputChan)
		defer t.release()

		var content string
		var reported *llm.Usage
		var upstreamErr error
		if send(ctx, outputChan, StreamMessageChunk{ConvID: t.conv.ID, Model: string(t.model.ID)}) {
			content, reported, upstreamErr = s.collect(ctx, t, outputChan)
		} else {
			upstreamErr = ctx.Err()
		}

		result := s.finalize(context.WithoutCancel(ctx), t, content, reported, upstreamErr)
		send(ctx, outputChan, StreamMessageChunk{Result: result})
	}()

	return outputChan, nil
}

// prepare admits the request, opens or resumes the conversation, takes the turn
// lock and stores the user message. The caller must call release on success.
func (s *ChatService) prepare(ctx context.Context, req SendMessageRequest) (*turn, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	user := req.User

	allowed, err := s.limiter.Allow(ctx, ratelimit.UserKey(user.ID))
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", user.ID).Warn("Rate limiter unavailable, allowing request")
	} else if !allowed {
		return nil, ratelimit.ErrRateLimited
	}

	var conv *db.Conversation
	model, persona := req.Model, req.Persona
	if req.ConversationID != 0 {
		conv, err = s.conversations.GetOwnedConversation(ctx, req.ConversationID, user.ID)
		if err != nil {
			return nil, err
		}
		if model == "" {
			model = conv.Model
		}
		persona = conv.Persona
	}
	if model == "" {
		model = string(config.DefaultModel)
	}
	if persona == "" {
		persona = string(config.DefaultPersona)
	}

	if err := s.quota.CheckPersonaAccess(user, persona); err != nil {
		return nil, err
	}
	if err := s.quota.CheckQuota(ctx, user, model); err != nil {
		return nil, err
	}

	modelInfo, _ := s.quota.Catalog().Model(model)

	if conv == nil {
		id, err := s.conversations.CreateConversation(ctx, user.ID, model, persona)
		if err != nil {
			return nil, err
		}
		conv = &db.Conversation{ID: id, UserID: user.ID, Model: model, Persona: persona}
	}

	release, err := s.conversations.Lock(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock conversation: %w", err)
	}

	prompt, err := s.conversations.BuildPrompt(ctx, conv, req.Message)
	if err != nil {
		release()
		return nil, err
	}

	if _, err := s.conversations.AddMessage(ctx, conv.ID, db.RoleUser, req.Message, s.counter.Count(req.Message), nil); err != nil {
		release()
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": conv.ID,
		"user_id":         user.ID,
		"model":           model,
		"persona":         persona,
		"message_count":   len(prompt),
	}).Debug("Prepared for LLM call")

	return &turn{
		user:    user,
		conv:    conv,
		model:   modelInfo,
		prompt:  prompt,
		release: release,
	}, nil
}

// collect forwards upstream fragments to out until the stream ends, fails, goes
// silent for the fragment timeout or the caller goes away.
func (s *ChatService) collect(ctx context.Context, t *turn, out chan<- StreamMessageChunk) (string, *llm.Usage, error) {
	relayCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, err := s.relay.Stream(relayCtx, t.request())
	if err != nil {
		return "", nil, err
	}

	var fullResponse strings.Builder
	var reported *llm.Usage

	timer := time.NewTimer(s.fragmentTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return fullResponse.String(), reported, ctx.Err()
		case <-timer.C:
			return fullResponse.String(), reported, ErrFragmentTimeout
		case chunk, ok := <-chunks:
			if !ok {
				return fullResponse.String(), reported, nil
			}
			if chunk.Err != nil {
				return fullResponse.String(), reported, chunk.Err
			}
			if chunk.Usage != nil {
				reported = chunk.Usage
			}
			if chunk.Content != "" {
				fullResponse.WriteString(chunk.Content)
				if !send(ctx, out, StreamMessageChunk{Content: chunk.Content}) {
					return fullResponse.String(), reported, ctx.Err()
				}
			}
			timer.Reset(s.fragmentTimeout)
		}
	}
}

// finalize stores the assistant turn and its ledger entry. It runs on a context
// detached from the caller so a disconnect cannot lose bookkeeping.
func (s *ChatService) finalize(ctx context.Context, t *turn, content string, reported *llm.Usage, upstreamErr error) *Result {
	modelID := string(t.model.ID)
	result := &Result{
		Status:         StatusComplete,
		Err:            upstreamErr,
		ConversationID: t.conv.ID,
		Model:          modelID,
	}
	if upstreamErr != nil {
		result.Status = StatusPartial
	}

	fields := logrus.Fields{
		"conversation_id": t.conv.ID,
		"user_id":         t.user.ID,
		"model":           modelID,
		"response_chars":  len(content),
	}

	if reported != nil {
		result.Usage = *reported
	} else {
		result.Estimated = true
		result.Usage = llm.Usage{
			PromptTokens:     llm.CountMessages(s.counter, t.prompt),
			CompletionTokens: s.counter.Count(content),
		}
	}

	if content == "" && reported == nil {
		// Nothing was generated and nothing was billed upstream.
		result.Usage = llm.Usage{}
		result.Estimated = false
		logger.Log.WithFields(fields).WithError(upstreamErr).Warn("Upstream produced no output")
		return result
	}

	var persistErrs []error

	if content != "" {
		var id int64
		var err error
		if upstreamErr != nil {
			id, err = s.conversations.AddPartialMessage(ctx, t.conv.ID, content, result.Usage.CompletionTokens, &modelID)
		} else {
			id, err = s.conversations.AddMessage(ctx, t.conv.ID, db.RoleAssistant, content, result.Usage.CompletionTokens, &modelID)
		}
		if err != nil {
			logger.Log.WithFields(fields).WithError(err).Error("Error adding assistant message")
			persistErrs = append(persistErrs, fmt.Errorf("failed to save assistant message: %w", err))
		}
		result.MessageID = id
	}

	result.Cost = s.quota.CalculateCost(modelID, result.Usage.PromptTokens, result.Usage.CompletionTokens)
	convID := t.conv.ID
	if _, err := s.ledger.LogUsage(ctx, t.user.ID, &convID, modelID, result.Usage.PromptTokens, result.Usage.CompletionTokens, result.Cost); err != nil {
		logger.Log.WithFields(fields).WithError(err).Error("Error logging usage")
		persistErrs = append(persistErrs, err)
	}

	if len(persistErrs) > 0 {
		result.Status = StatusFailed
		result.Err = errors.Join(persistErrs...)
		return result
	}

	fields["status"] = result.Status
	fields["prompt_tokens"] = result.Usage.PromptTokens
	fields["completion_tokens"] = result.Usage.CompletionTokens
	fields["cost"] = result.Cost
	fields["estimated"] = result.Estimated
	if upstreamErr != nil {
		logger.Log.WithFields(fields).WithError(upstreamErr).Warn("Saved partial response")
	} else {
		logger.Log.WithFields(fields).Debug("Completed response")
	}

	return result
}

func send(ctx context.Context, out chan<- StreamMessageChunk, chunk StreamMessageChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
