package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"group_chat/internal/domain"
	"group_chat/internal/middleware"
	"group_chat/internal/service"
	"group_chat/pkg/logger"
)

type ChatHandler struct {
	authService service.AuthService
	chatService service.ChatService
	log         logger.Logger
}

func NewChatHandler(authService service.AuthService, chatService service.ChatService, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		authService: authService,
		chatService: chatService,
		log:         log,
	}
}

// GetMessages отдает ту же историю, что приходит в joinedGroup, без подписки на комнату
func (h *ChatHandler) GetMessages(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group ID"})
		return
	}

	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	ctx := c.Request.Context()
	if err := h.authService.AuthorizeGroupAction(ctx, identity, groupID, domain.ActionJoin, nil); err != nil {
		_ = c.Error(err)
		return
	}

	messages, err := h.chatService.History(ctx, groupID, limit)
	if err != nil {
		h.log.Error("Failed to load history", "error", err, "group_id", groupID)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"groupId":  groupID,
		"messages": messages,
	})
}
