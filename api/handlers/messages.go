package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apierrors "github.com/nolashq/nolas/api/errors"
	"github.com/nolashq/nolas/dto"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/services/messages"
	"github.com/nolashq/nolas/services/smtp"
)

type MessagesHandler struct {
	accounts interfaces.AccountRepository
	reader   interfaces.MessageReader
	sender   interfaces.EmailSender
	log      logger.Logger
}

// Get fetches one message by Message-ID.
func (h *MessagesHandler) Get(c *gin.Context) {
	_, account, ok := resolveAccount(c, h.accounts)
	if !ok {
		return
	}

	messageID := c.Param("message_id")
	result, err := h.reader.GetMessage(c.Request.Context(), account, messageID)
	if err != nil {
		h.log.Errorf("failed to fetch message %s for %s: %v", messageID, account.Email, err)
		apierrors.Provider(c, "failed to fetch message", err)
		return
	}
	if result == nil {
		apierrors.NotFound(c, "message not found")
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{
		RequestID: uuid.NewString(),
		GrantID:   account.UUID,
		Data:      *result.Message,
	})
}

// List returns a page of messages from one folder, newest first.
func (h *MessagesHandler) List(c *gin.Context) {
	_, account, ok := resolveAccount(c, h.accounts)
	if !ok {
		return
	}

	folder := c.DefaultQuery("folder", "INBOX")

	limit := messages.DefaultPageSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > messages.MaxPageSize {
			apierrors.BadRequest(c, "limit must be an integer between 1 and 100")
			return
		}
		limit = parsed
	}

	offset := 0
	if raw := c.Query("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			apierrors.BadRequest(c, "offset must be a non-negative integer")
			return
		}
		offset = parsed
	}

	page, err := h.reader.ListMessages(c.Request.Context(), account, folder, limit, offset)
	if err != nil {
		h.log.Errorf("failed to list %s for %s: %v", folder, account.Email, err)
		apierrors.Provider(c, "failed to list messages", err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageListResponse{
		RequestID: uuid.NewString(),
		GrantID:   account.UUID,
		Data:      page,
	})
}

// Send submits a message over SMTP. The body is either plain JSON or
// multipart form data with a `Message` JSON field plus file parts.
func (h *MessagesHandler) Send(c *gin.Context) {
	_, account, ok := resolveAccount(c, h.accounts)
	if !ok {
		return
	}

	request, err := h.bindSendRequest(c)
	if err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	message, err := h.sender.Send(c.Request.Context(), account, request)
	if err != nil {
		var paramErr *smtp.InvalidParameterError
		if errors.As(err, &paramErr) {
			apierrors.BadRequest(c, paramErr.Error())
			return
		}
		h.log.Errorf("failed to send message for %s: %v", account.Email, err)
		apierrors.Provider(c, "failed to send message", err)
		return
	}

	c.JSON(http.StatusOK, dto.SendMessageResponse{
		RequestID: uuid.NewString(),
		GrantID:   account.UUID,
		Data:      *message,
	})
}

func (h *MessagesHandler) bindSendRequest(c *gin.Context) (*dto.SendMessageRequest, error) {
	mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if err != nil {
		return nil, errors.New("missing or malformed Content-Type")
	}

	var request dto.SendMessageRequest

	if !strings.HasPrefix(mediaType, "multipart/") {
		if err := c.ShouldBindJSON(&request); err != nil {
			return nil, errors.New("malformed message body")
		}
		return &request, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, errors.New("malformed multipart body")
	}

	payloads := form.Value["Message"]
	if len(payloads) == 0 {
		return nil, errors.New("multipart send requires a Message field")
	}
	if err := json.Unmarshal([]byte(payloads[0]), &request); err != nil {
		return nil, errors.New("Message field is not valid JSON")
	}

	for _, files := range form.File {
		for _, header := range files {
			file, err := header.Open()
			if err != nil {
				return nil, errors.New("failed to read attachment part")
			}
			content, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				return nil, errors.New("failed to read attachment part")
			}
			request.Attachments = append(request.Attachments, dto.SendAttachment{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Content:     content,
			})
		}
	}

	return &request, nil
}
