package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"projectnest/internal/services"
	"projectnest/internal/utils"
)

type MessageHandler struct {
	messages *services.MessageService
	presence *services.Presence
}

func NewMessageHandler(messages *services.MessageService, presence *services.Presence) *MessageHandler {
	return &MessageHandler{messages: messages, presence: presence}
}

type conversationView struct {
	services.ConversationSummary
	Online bool `json:"online"`
}

func (h *MessageHandler) ListConversations(c *gin.Context) {
	convs, err := h.messages.ListConversations(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	ids := make([]uint, len(convs))
	for i, conv := range convs {
		ids[i] = conv.Other.ID
	}
	online := h.presence.Online(ids)

	out := make([]conversationView, len(convs))
	for i, conv := range convs {
		out[i] = conversationView{ConversationSummary: conv, Online: online[conv.Other.ID]}
	}
	c.JSON(http.StatusOK, out)
}

type startConversationRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

func (h *MessageHandler) Start(c *gin.Context) {
	var req startConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "user_id is required")
		return
	}
	conv, err := h.messages.StartConversation(c.Request.Context(), actor(c), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": conv.ID})
}

// ListMessages pages backwards: ?before=<RFC3339>&limit=50.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var before time.Time
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			badRequest(c, "before must be an RFC 3339 time")
			return
		}
		before = t
	}
	msgs, err := h.messages.ListMessages(c.Request.Context(), actor(c), id, before, utils.StringToInt(c.Query("limit")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (h *MessageHandler) Send(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid message body")
		return
	}
	msg, err := h.messages.Send(c.Request.Context(), actor(c), id, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.messages.MarkRead(c.Request.Context(), actor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
