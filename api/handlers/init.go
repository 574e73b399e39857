package handlers

import (
	"github.com/gin-gonic/gin"

	apierrors "github.com/nolashq/nolas/api/errors"
	"github.com/nolashq/nolas/api/middleware"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/enum"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/models"
	"github.com/nolashq/nolas/internal/repository"
	"github.com/nolashq/nolas/services"
)

type Handlers struct {
	Connect     *ConnectHandler
	Grants      *GrantsHandler
	Messages    *MessagesHandler
	Attachments *AttachmentsHandler
	Folders     *FoldersHandler
	Webhooks    *WebhooksHandler
}

func InitHandlers(repos *repository.Repositories, s *services.Services, log logger.Logger) *Handlers {
	accounts := repos.AccountRepository
	return &Handlers{
		Connect:     &ConnectHandler{connect: s.ConnectService, log: log},
		Grants:      &GrantsHandler{connect: s.ConnectService, log: log},
		Messages:    &MessagesHandler{accounts: accounts, reader: s.MessageReader, sender: s.EmailSender, log: log},
		Attachments: &AttachmentsHandler{accounts: accounts, reader: s.MessageReader, translator: s.Translator, log: log},
		Folders:     &FoldersHandler{accounts: accounts, folders: s.FolderService, log: log},
		Webhooks:    &WebhooksHandler{accounts: accounts, dispatcher: s.WebhookDispatcher, log: log},
	}
}

// resolveAccount loads the grant addressed by the :grant_id path parameter,
// scoped to the authenticated app. Inactive grants read as not found.
func resolveAccount(c *gin.Context, accounts interfaces.AccountRepository) (*models.App, *models.Account, bool) {
	app := middleware.GetApp(c)
	if app == nil {
		apierrors.Unauthorized(c, "missing application context")
		return nil, nil, false
	}

	grantID := c.Param("grant_id")
	account, err := accounts.GetByAppAndUUID(c.Request.Context(), app.ID, grantID)
	if err != nil {
		apierrors.Internal(c, "failed to load grant")
		return nil, nil, false
	}
	if account == nil || account.Status == enum.AccountStatusInactive {
		apierrors.NotFound(c, "grant not found")
		return nil, nil, false
	}

	return app, account, true
}
