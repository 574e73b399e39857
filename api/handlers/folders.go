package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apierrors "github.com/nolashq/nolas/api/errors"
	"github.com/nolashq/nolas/dto"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/logger"
)

type FoldersHandler struct {
	accounts interfaces.AccountRepository
	folders  interfaces.FolderService
	log      logger.Logger
}

// List returns the monitored folders of a grant. Folder names double as ids.
func (h *FoldersHandler) List(c *gin.Context) {
	_, account, ok := resolveAccount(c, h.accounts)
	if !ok {
		return
	}

	names, err := h.folders.MonitoredFolders(c.Request.Context(), account)
	if err != nil {
		h.log.Errorf("failed to list folders for %s: %v", account.Email, err)
		apierrors.Provider(c, "failed to list folders", err)
		return
	}

	folders := make([]dto.Folder, 0, len(names))
	for _, name := range names {
		folders = append(folders, dto.Folder{
			ID:      name,
			GrantID: account.UUID,
			Name:    name,
			Object:  "folder",
		})
	}

	c.JSON(http.StatusOK, dto.FolderListResponse{
		RequestID: uuid.NewString(),
		GrantID:   account.UUID,
		Data:      folders,
	})
}

// Get returns one folder record by id (the folder name).
func (h *FoldersHandler) Get(c *gin.Context) {
	_, account, ok := resolveAccount(c, h.accounts)
	if !ok {
		return
	}

	folderID := c.Param("folder_id")
	names, err := h.folders.MonitoredFolders(c.Request.Context(), account)
	if err != nil {
		h.log.Errorf("failed to list folders for %s: %v", account.Email, err)
		apierrors.Provider(c, "failed to list folders", err)
		return
	}

	for _, name := range names {
		if name == folderID {
			c.JSON(http.StatusOK, dto.FolderResponse{
				RequestID: uuid.NewString(),
				GrantID:   account.UUID,
				Data: dto.Folder{
					ID:      name,
					GrantID: account.UUID,
					Name:    name,
					Object:  "folder",
				},
			})
			return
		}
	}

	apierrors.NotFound(c, "folder not found")
}
