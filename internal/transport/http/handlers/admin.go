package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/osetrov/adminpanel-auth/internal/usecase"
)

// AdminHandler serves administrative lockout management.
type AdminHandler struct {
	lockouts *usecase.LockoutService
	logger   *zap.Logger
}

func NewAdminHandler(lockouts *usecase.LockoutService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{lockouts: lockouts, logger: logger}
}

// ClearLockout lifts an account's lockout window and resets its counter.
func (h *AdminHandler) ClearLockout(c *gin.Context) {
	accountID := c.Param("id")
	if accountID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "account id is required"))
		return
	}

	if err := h.lockouts.Clear(c.Request.Context(), accountID); err != nil {
		h.logger.Error("failed to clear lockout",
			zap.String("account_id", accountID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to clear lockout"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "lockout cleared"})
}
