package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apierrors "github.com/nolashq/nolas/api/errors"
	"github.com/nolashq/nolas/api/middleware"
	"github.com/nolashq/nolas/dto"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/services/connect"
)

type GrantsHandler struct {
	connect interfaces.ConnectService
	log     logger.Logger
}

// Delete revokes a grant: the account goes inactive and its watermarks are
// dropped. Deleting the same grant twice is an invalid-grant error.
func (h *GrantsHandler) Delete(c *gin.Context) {
	app := middleware.GetApp(c)
	if app == nil {
		apierrors.Unauthorized(c, "missing application context")
		return
	}

	grantID := c.Param("grant_id")
	account, err := h.connect.DeleteGrant(c.Request.Context(), app, grantID)
	if err != nil {
		var authErr *connect.AuthorizationError
		if errors.As(err, &authErr) {
			apierrors.WithStatus(c, authErr.StatusCode, authErr.Message)
			return
		}
		h.log.Errorf("failed to delete grant %s: %v", grantID, err)
		apierrors.Internal(c, "failed to delete grant")
		return
	}

	c.JSON(http.StatusOK, dto.DeleteGrantResponse{
		RequestID: uuid.NewString(),
		GrantID:   account.UUID,
		Object:    "grant",
		Success:   true,
	})
}
