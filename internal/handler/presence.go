package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"group_chat/internal/service"
	apperrors "group_chat/pkg/errors"
	"group_chat/pkg/logger"
)

type PresenceHandler struct {
	presenceService service.PresenceService
	log             logger.Logger
}

func NewPresenceHandler(presenceService service.PresenceService, log logger.Logger) *PresenceHandler {
	return &PresenceHandler{
		presenceService: presenceService,
		log:             log,
	}
}

func (h *PresenceHandler) GetPresence(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	presence, err := h.presenceService.GetPresence(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("Failed to get presence", "error", err, "user_id", userID)
		_ = c.Error(apperrors.Persistence(err))
		return
	}

	c.JSON(http.StatusOK, presence)
}
