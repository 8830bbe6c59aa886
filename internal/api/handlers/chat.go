package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"rodeoai/internal/logger"
	chatService "rodeoai/internal/service/chat"

	"github.com/sirupsen/logrus"
)

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID int64  `json:"conversation_id,omitempty"`
	Model          string `json:"model,omitempty"`
	Persona        string `json:"persona,omitempty"`
}

type UsageData struct {
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	TotalCost        float64 `json:"total_cost"`
	Estimated        bool    `json:"estimated"`
	MessageID        int64   `json:"message_id,omitempty"`
}

type ChatResponse struct {
	Response       string     `json:"response"`
	ConversationID int64      `json:"conversation_id"`
	Model          string     `json:"model"`
	Usage          *UsageData `json:"usage,omitempty"`
}

type StreamErrorData struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func usageData(result *chatService.Result) *UsageData {
	return &UsageData{
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		TotalTokens:      result.Usage.Total(),
		TotalCost:        result.Cost,
		Estimated:        result.Estimated,
		MessageID:        result.MessageID,
	}
}

func (ch *ChatHandlers) decodeChatRequest(w http.ResponseWriter, r *http.Request) (*ChatRequest, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, false
	}

	if err := ch.validator.ValidateChatRequest(req.Message, req.ConversationID, req.Model, req.Persona); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Validation failed", err)
		return nil, false
	}
	return &req, true
}

// ChatStreamHandler is the SSE endpoint for streaming chat responses. Content
// fragments are JSON strings; control events are CONV_ID:, MODEL:, USAGE:,
// ERROR: and [DONE].
func (ch *ChatHandlers) ChatStreamHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := ch.currentUser(w, r)
	if !ok {
		return
	}
	logger.Log.WithField("user_id", user.ID).Info("Chat stream request received")

	req, ok := ch.decodeChatRequest(w, r)
	if !ok {
		return
	}

	// Check if response writer supports flushing
	flusher, ok := w.(http.Flusher)
	if !ok {
		ch.sendError(w, http.StatusInternalServerError, "Streaming not supported", nil)
		return
	}

	// Admission errors are returned before anything is streamed
	chunks, err := ch.chatService.SendMessageStream(r.Context(), chatService.SendMessageRequest{
		User:           user,
		Message:        req.Message,
		ConversationID: req.ConversationID,
		Model:          req.Model,
		Persona:        req.Persona,
	})
	if err != nil {
		ch.sendServiceError(w, err, "Error processing message")
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Stream chunks to client using SSE format
	for streamChunk := range chunks {
		switch {
		case streamChunk.ConvID != 0:
			fmt.Fprintf(w, "data: CONV_ID:%d\n\n", streamChunk.ConvID)
			fmt.Fprintf(w, "data: MODEL:%s\n\n", streamChunk.Model)
			flusher.Flush()
			logger.Log.WithField("conversation_id", streamChunk.ConvID).Debug("Sent conversation ID to client")

		case streamChunk.Result != nil:
			ch.writeResult(w, streamChunk.Result)
			flusher.Flush()

		case streamChunk.Content != "":
			// Content is a JSON string so it never collides with control events
			contentJSON, _ := json.Marshal(streamChunk.Content)
			fmt.Fprintf(w, "data: %s\n\n", contentJSON)
			flusher.Flush()
		}
	}

	// Send completion marker
	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// writeResult emits the usage event and, for unfinished turns, an in-band error event
func (ch *ChatHandlers) writeResult(w http.ResponseWriter, result *chatService.Result) {
	if result.Usage.Total() > 0 {
		usageJSON, _ := json.Marshal(usageData(result))
		fmt.Fprintf(w, "data: USAGE:%s\n\n", usageJSON)
	}

	if result.Status == chatService.StatusComplete {
		return
	}

	message := "response interrupted"
	if result.Err != nil {
		message = result.Err.Error()
	}
	errJSON, _ := json.Marshal(StreamErrorData{Status: string(result.Status), Message: message})
	fmt.Fprintf(w, "data: ERROR:%s\n\n", errJSON)

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": result.ConversationID,
		"status":          result.Status,
	}).WithError(result.Err).Warn("Stream ended early")
}

// ChatHandler is the REST endpoint for chat (non-streaming)
func (ch *ChatHandlers) ChatHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := ch.currentUser(w, r)
	if !ok {
		return
	}
	logger.Log.WithField("user_id", user.ID).Info("Chat request received")

	req, ok := ch.decodeChatRequest(w, r)
	if !ok {
		return
	}

	response, err := ch.chatService.SendMessage(r.Context(), chatService.SendMessageRequest{
		User:           user,
		Message:        req.Message,
		ConversationID: req.ConversationID,
		Model:          req.Model,
		Persona:        req.Persona,
	})
	if err != nil {
		ch.sendServiceError(w, err, "Error processing message")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ChatResponse{
		Response:       response.Response,
		ConversationID: response.ConversationID,
		Model:          response.Model,
		Usage:          usageData(response.Result),
	})
}
