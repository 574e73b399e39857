package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apierrors "github.com/nolashq/nolas/api/errors"
	"github.com/nolashq/nolas/dto"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/models"
)

type AttachmentsHandler struct {
	accounts   interfaces.AccountRepository
	reader     interfaces.MessageReader
	translator interfaces.Translator
	log        logger.Logger
}

// Get returns attachment metadata. Attachment ids are positional within a
// message, so message_id is required to locate the part.
func (h *AttachmentsHandler) Get(c *gin.Context) {
	content, account, ok := h.loadAttachment(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, dto.AttachmentResponse{
		RequestID: uuid.NewString(),
		GrantID:   account.UUID,
		Data:      content.Attachment,
	})
}

// Download streams the decoded attachment bytes.
func (h *AttachmentsHandler) Download(c *gin.Context) {
	content, _, ok := h.loadAttachment(c)
	if !ok {
		return
	}

	contentType := content.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", content.Filename))
	c.Data(http.StatusOK, contentType, content.Content)
}

func (h *AttachmentsHandler) loadAttachment(c *gin.Context) (*dto.AttachmentContent, *models.Account, bool) {
	_, account, ok := resolveAccount(c, h.accounts)
	if !ok {
		return nil, nil, false
	}

	messageID := c.Query("message_id")
	if messageID == "" {
		apierrors.BadRequest(c, "message_id query parameter is required")
		return nil, nil, false
	}

	result, err := h.reader.GetMessage(c.Request.Context(), account, messageID)
	if err != nil {
		h.log.Errorf("failed to fetch message %s for %s: %v", messageID, account.Email, err)
		apierrors.Provider(c, "failed to fetch message", err)
		return nil, nil, false
	}
	if result == nil {
		apierrors.NotFound(c, "message not found")
		return nil, nil, false
	}

	attachmentID := c.Param("attachment_id")
	content, err := h.translator.ExtractAttachment(c.Request.Context(), result.Raw, attachmentID)
	if err != nil {
		apierrors.NotFound(c, "attachment not found")
		return nil, nil, false
	}

	return content, account, true
}
