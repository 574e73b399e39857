package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apierrors "github.com/nolashq/nolas/api/errors"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/models"
)

const appContextKey = "app"

// BearerAuth resolves `Authorization: Bearer <api_key>` to an App and stores
// it on the request context.
func BearerAuth(apps interfaces.AppRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			apierrors.Unauthorized(c, "missing Authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			apierrors.Unauthorized(c, "Authorization header must be of the form Bearer <api_key>")
			return
		}

		app, err := apps.GetByAPIKey(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			apierrors.Internal(c, "failed to verify credentials")
			return
		}
		if app == nil {
			apierrors.Unauthorized(c, "invalid api key")
			return
		}

		c.Set(appContextKey, app)
		c.Next()
	}
}

// GetApp returns the authenticated App set by BearerAuth.
func GetApp(c *gin.Context) *models.App {
	value, exists := c.Get(appContextKey)
	if !exists {
		return nil
	}
	app, ok := value.(*models.App)
	if !ok {
		return nil
	}
	return app
}
