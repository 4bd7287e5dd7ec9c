package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/linwc/talkwire-server/internal/service/messages"
	"github.com/linwc/talkwire-server/internal/store"
)

// MessageHandlers provides HTTP handlers for message history and read
// receipts.
type MessageHandlers struct {
	service *messages.Service
	log     *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(svc *messages.Service, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		service: svc,
		log:     logger,
	}
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID         int64  `json:"id"`
	SenderID   int64  `json:"senderId"`
	ReceiverID int64  `json:"receiverId,omitempty"`
	GroupID    int64  `json:"groupId,omitempty"`
	Content    string `json:"content"`
	Read       bool   `json:"read"`
	CreatedAt  string `json:"createdAt"`
}

func messageToResponse(m *store.Message) MessageResponse {
	resp := MessageResponse{
		ID:        m.ID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Read:      m.Read,
		CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if m.ReceiverID != nil {
		resp.ReceiverID = *m.ReceiverID
	}
	if m.GroupID != nil {
		resp.GroupID = *m.GroupID
	}
	return resp
}

func messagesToResponse(msgs []*store.Message) []MessageResponse {
	response := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		response = append(response, messageToResponse(m))
	}
	return response
}

// pathID parses a numeric path parameter.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name})
		return 0, false
	}
	return id, true
}

// ListMessages handles listing all direct messages involving the user.
// GET /api/messages
func (h *MessageHandlers) ListMessages(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	msgs, err := h.service.ListMessages(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, messagesToResponse(msgs))
}

// ListConversation handles listing the direct message history with a friend.
// GET /api/messages/:friendId
func (h *MessageHandlers) ListConversation(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	friendID, ok := pathID(c, "friendId")
	if !ok {
		return
	}

	msgs, err := h.service.ListConversation(c.Request.Context(), uid, friendID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Int64("friend_id", friendID).Msg("failed to list conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, messagesToResponse(msgs))
}

// MarkConversationRead handles marking a conversation as read.
// POST /api/messages/read/:friendId
func (h *MessageHandlers) MarkConversationRead(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	friendID, ok := pathID(c, "friendId")
	if !ok {
		return
	}

	ids, err := h.service.MarkConversationRead(c.Request.Context(), uid, friendID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Int64("friend_id", friendID).Msg("failed to mark conversation read")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if ids == nil {
		ids = []int64{}
	}
	c.JSON(http.StatusOK, gin.H{"readMessageIds": ids})
}
