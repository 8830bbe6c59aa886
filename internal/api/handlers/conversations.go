package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"rodeoai/internal/logger"
	"rodeoai/internal/repository/db"

	"github.com/sirupsen/logrus"
)

const maxConversationList = 200

type ConversationInfo struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Model     string `json:"model"`
	Persona   string `json:"persona"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ConversationsResponse struct {
	Conversations []ConversationInfo `json:"conversations"`
}

type MessageData struct {
	ID         int64   `json:"id"`
	Seq        int64   `json:"seq"`
	Role       string  `json:"role"`
	Content    string  `json:"content"`
	TokensUsed int64   `json:"tokens_used"`
	Model      *string `json:"model,omitempty"`
	Partial    bool    `json:"partial"`
	CreatedAt  string  `json:"created_at"`
}

type MessagesResponse struct {
	Messages []MessageData `json:"messages"`
}

type RenameRequest struct {
	Title string `json:"title"`
}

func conversationInfo(conv db.Conversation) ConversationInfo {
	title := ""
	if conv.Title != nil {
		title = *conv.Title
	}
	return ConversationInfo{
		ID:        conv.ID,
		Title:     title,
		Model:     conv.Model,
		Persona:   conv.Persona,
		CreatedAt: conv.CreatedAt.Format(time.RFC3339),
		UpdatedAt: conv.UpdatedAt.Format(time.RFC3339),
	}
}

// GetConversationsHandler returns the authenticated user's conversations, most recent first
func (ch *ChatHandlers) GetConversationsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := ch.currentUser(w, r)
	if !ok {
		return
	}
	logger.Log.WithField("user_id", user.ID).Info("Get conversations request")

	conversations, err := ch.conversationService.GetUserConversations(r.Context(), user.ID, queryLimit(r, maxConversationList))
	if err != nil {
		ch.sendServiceError(w, err, "Error retrieving conversations")
		return
	}

	// Convert to response format
	convInfos := make([]ConversationInfo, 0, len(conversations))
	for _, conv := range conversations {
		convInfos = append(convInfos, conversationInfo(conv))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ConversationsResponse{
		Conversations: convInfos,
	})
}

// GetConversationMessagesHandler returns all messages from a specific conversation
func (ch *ChatHandlers) GetConversationMessagesHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := ch.currentUser(w, r)
	if !ok {
		return
	}
	convID, ok := ch.pathID(w, r)
	if !ok {
		return
	}
	logger.Log.WithFields(logrus.Fields{"user_id": user.ID, "conversation_id": convID}).Info("Get conversation messages request")

	if _, err := ch.conversationService.GetOwnedConversation(r.Context(), convID, user.ID); err != nil {
		ch.sendServiceError(w, err, "Error retrieving messages")
		return
	}

	messages, err := ch.conversationService.GetConversationMessages(r.Context(), convID)
	if err != nil {
		ch.sendServiceError(w, err, "Error retrieving messages")
		return
	}

	// Convert to response format
	msgData := make([]MessageData, 0, len(messages))
	for _, msg := range messages {
		msgData = append(msgData, MessageData{
			ID:         msg.ID,
			Seq:        msg.Seq,
			Role:       msg.Role,
			Content:    msg.Content,
			TokensUsed: msg.TokensUsed,
			Model:      msg.Model,
			Partial:    msg.Partial,
			CreatedAt:  msg.CreatedAt.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(MessagesResponse{
		Messages: msgData,
	})
}

// RenameConversationHandler replaces a conversation's title
func (ch *ChatHandlers) RenameConversationHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := ch.currentUser(w, r)
	if !ok {
		return
	}
	convID, ok := ch.pathID(w, r)
	if !ok {
		return
	}

	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := ch.validator.ValidateTitle(req.Title); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	conv, err := ch.conversationService.GetOwnedConversation(r.Context(), convID, user.ID)
	if err != nil {
		ch.sendServiceError(w, err, "Error renaming conversation")
		return
	}

	if err := ch.conversationService.UpdateConversationTitle(r.Context(), convID, req.Title); err != nil {
		ch.sendServiceError(w, err, "Error renaming conversation")
		return
	}
	conv.Title = &req.Title

	logger.Log.WithFields(logrus.Fields{"user_id": user.ID, "conversation_id": convID}).Info("Conversation renamed")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conversationInfo(*conv))
}
