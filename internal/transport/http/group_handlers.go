package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/linwc/talkwire-server/internal/service/messages"
	"github.com/linwc/talkwire-server/internal/store"
)

// GroupHandlers provides HTTP handlers for group management endpoints.
type GroupHandlers struct {
	store    store.Store
	messages *messages.Service
	log      *zerolog.Logger
}

// NewGroupHandlers creates a new group handlers instance.
func NewGroupHandlers(st store.Store, msgSvc *messages.Service, logger *zerolog.Logger) *GroupHandlers {
	return &GroupHandlers{
		store:    st,
		messages: msgSvc,
		log:      logger,
	}
}

// CreateGroupRequest represents the create group request body.
type CreateGroupRequest struct {
	Name string `json:"name" binding:"required,min=1,max=64"`
}

// AddMemberRequest represents the add member request body.
type AddMemberRequest struct {
	UserID int64 `json:"userId" binding:"required"`
}

// GroupResponse represents a group in API responses.
type GroupResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

// GroupMemberResponse represents a group member in API responses.
type GroupMemberResponse struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

func groupToResponse(g *store.Group) GroupResponse {
	return GroupResponse{
		ID:        g.ID,
		Name:      g.Name,
		CreatedAt: g.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// CreateGroup handles group creation. The creator becomes the group admin.
// POST /api/groups
func (h *GroupHandlers) CreateGroup(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create group request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	group, err := h.store.CreateGroup(c.Request.Context(), strings.TrimSpace(req.Name), uid)
	if err != nil {
		h.log.Error().Err(err).Str("group_name", req.Name).Msg("failed to create group")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("group_id", group.ID).Int64("creator_id", uid).Str("group_name", group.Name).Msg("group created")
	c.JSON(http.StatusCreated, groupToResponse(group))
}

// ListGroups handles listing the groups the user belongs to.
// GET /api/groups
func (h *GroupHandlers) ListGroups(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	groups, err := h.store.ListGroupsForUser(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list groups")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]GroupResponse, 0, len(groups))
	for _, g := range groups {
		response = append(response, groupToResponse(g))
	}

	c.JSON(http.StatusOK, response)
}

// ListMembers handles listing the members of a group.
// GET /api/groups/:groupId/members
func (h *GroupHandlers) ListMembers(c *gin.Context) {
	if _, ok := currentUserID(c, h.log); !ok {
		return
	}

	groupID, ok := pathID(c, "groupId")
	if !ok {
		return
	}

	if _, err := h.store.GetGroupByID(c.Request.Context(), groupID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "group not found"})
			return
		}
		h.log.Error().Err(err).Int64("group_id", groupID).Msg("failed to get group")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	members, err := h.store.ListGroupMembers(c.Request.Context(), groupID)
	if err != nil {
		h.log.Error().Err(err).Int64("group_id", groupID).Msg("failed to list group members")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]GroupMemberResponse, 0, len(members))
	for _, m := range members {
		entry := GroupMemberResponse{UserID: m.UserID, IsAdmin: m.IsAdmin}
		if user, err := h.store.GetUserByID(c.Request.Context(), m.UserID); err == nil {
			entry.Username = user.Username
		}
		response = append(response, entry)
	}

	c.JSON(http.StatusOK, response)
}

// AddMember handles adding a user to a group.
// POST /api/groups/:groupId/members
func (h *GroupHandlers) AddMember(c *gin.Context) {
	if _, ok := currentUserID(c, h.log); !ok {
		return
	}

	groupID, ok := pathID(c, "groupId")
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid add member request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetGroupByID(ctx, groupID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "group not found"})
			return
		}
		h.log.Error().Err(err).Int64("group_id", groupID).Msg("failed to get group")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if _, err := h.store.GetUserByID(ctx, req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Int64("user_id", req.UserID).Msg("failed to get user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	member, err := h.store.IsGroupMember(ctx, groupID, req.UserID)
	if err != nil {
		h.log.Error().Err(err).Int64("group_id", groupID).Msg("failed to check membership")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if member {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "user is already a group member"})
		return
	}

	if err := h.store.AddGroupMember(ctx, groupID, req.UserID, false); err != nil {
		h.log.Error().Err(err).Int64("group_id", groupID).Int64("user_id", req.UserID).Msg("failed to add group member")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("group_id", groupID).Int64("user_id", req.UserID).Msg("group member added")
	c.JSON(http.StatusCreated, gin.H{"message": "member added"})
}

// ListGroupMessages handles listing a group's message history.
// GET /api/groups/:groupId/messages
func (h *GroupHandlers) ListGroupMessages(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	groupID, ok := pathID(c, "groupId")
	if !ok {
		return
	}

	msgs, err := h.messages.ListGroupMessages(c.Request.Context(), uid, groupID)
	if err != nil {
		if errors.Is(err, messages.ErrNotGroupMember) {
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a group member"})
			return
		}
		h.log.Error().Err(err).Int64("group_id", groupID).Msg("failed to list group messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, messagesToResponse(msgs))
}
