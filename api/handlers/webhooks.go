package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apierrors "github.com/nolashq/nolas/api/errors"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/logger"
)

type WebhooksHandler struct {
	accounts   interfaces.AccountRepository
	dispatcher interfaces.WebhookDispatcher
	log        logger.Logger
}

// SendTest fires a synthetic event at the app's webhook endpoint so the
// URL and signing secret can be verified before real traffic arrives.
func (h *WebhooksHandler) SendTest(c *gin.Context) {
	app, account, ok := resolveAccount(c, h.accounts)
	if !ok {
		return
	}

	if err := h.dispatcher.SendTest(c.Request.Context(), app, account); err != nil {
		h.log.Warnf("test webhook for app %s failed: %v", app.ID, err)
		apierrors.Provider(c, "test webhook delivery failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id": uuid.NewString(),
		"delivered":  true,
	})
}
