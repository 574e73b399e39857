package handlers

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/nolashq/nolas/api/errors"
	"github.com/nolashq/nolas/api/middleware"
	"github.com/nolashq/nolas/dto"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/services/connect"
)

type ConnectHandler struct {
	connect interfaces.ConnectService
	log     logger.Logger
}

// AuthorizeForm validates the authorization parameters and renders the
// credentials form that feeds /connect/process.
func (h *ConnectHandler) AuthorizeForm(c *gin.Context) {
	app := middleware.GetApp(c)
	if app == nil {
		apierrors.Unauthorized(c, "missing application context")
		return
	}

	var params dto.AuthorizeParams
	if err := c.ShouldBind(&params); err != nil {
		apierrors.BadRequest(c, "malformed authorization parameters")
		return
	}

	if err := h.connect.ValidateAuthorizeParams(c.Request.Context(), app, &params); err != nil {
		h.respondConnectError(c, err)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := authorizeFormTemplate.Execute(c.Writer, params); err != nil {
		h.log.Errorf("failed to render authorization form: %v", err)
	}
}

// Process verifies the submitted mailbox credentials and redirects back to
// the app with a one-time code.
func (h *ConnectHandler) Process(c *gin.Context) {
	app := middleware.GetApp(c)
	if app == nil {
		apierrors.Unauthorized(c, "missing application context")
		return
	}

	var request dto.ProcessRequest
	if err := c.ShouldBind(&request); err != nil {
		apierrors.BadRequest(c, "malformed credentials form")
		return
	}

	redirect, err := h.connect.ProcessAuthorization(c.Request.Context(), app, &request)
	if err != nil {
		h.respondConnectError(c, err)
		return
	}

	c.Redirect(http.StatusFound, redirect)
}

// Token exchanges a one-time authorization code for a grant.
func (h *ConnectHandler) Token(c *gin.Context) {
	app := middleware.GetApp(c)
	if app == nil {
		apierrors.Unauthorized(c, "missing application context")
		return
	}

	var request dto.TokenRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		apierrors.BadRequest(c, "malformed token request")
		return
	}

	response, err := h.connect.ExchangeToken(c.Request.Context(), app, &request)
	if err != nil {
		h.respondConnectError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *ConnectHandler) respondConnectError(c *gin.Context, err error) {
	var authErr *connect.AuthorizationError
	if errors.As(err, &authErr) {
		apierrors.WithStatus(c, authErr.StatusCode, authErr.Message)
		return
	}
	h.log.Errorf("connect flow failed: %v", err)
	apierrors.Internal(c, "authorization failed")
}

var authorizeFormTemplate = template.Must(template.New("authorize").Parse(`<!DOCTYPE html>
<html>
<head><title>Connect your mailbox</title></head>
<body>
  <h1>Connect your mailbox</h1>
  <form method="post" action="/v3/connect/process">
    <input type="hidden" name="client_id" value="{{.ClientID}}">
    <input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
    <input type="hidden" name="response_type" value="code">
    <input type="hidden" name="state" value="{{.State}}">
    <input type="hidden" name="scope" value="{{.Scope}}">
    <label>Email <input type="email" name="email" value="{{.LoginHint}}" required></label>
    <label>Password <input type="password" name="password" required></label>
    <label>IMAP host <input type="text" name="imap_host" required></label>
    <label>IMAP port <input type="number" name="imap_port" value="993"></label>
    <label>SMTP host <input type="text" name="smtp_host"></label>
    <label>SMTP port <input type="number" name="smtp_port" value="465"></label>
    <button type="submit">Authorize</button>
  </form>
</body>
</html>
`))
