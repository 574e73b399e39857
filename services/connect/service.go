package connect

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"

	"github.com/nolashq/nolas/dto"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/enum"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/models"
	"github.com/nolashq/nolas/internal/tracing"
	"github.com/nolashq/nolas/internal/utils"
)

const authorizationCodeTTL = 10 * time.Minute

type connectService struct {
	accounts      interfaces.AccountRepository
	authRequests  interfaces.AuthorizationRequestRepository
	uidTracking   interfaces.UidTrackingRepository
	connections   interfaces.IMAPConnectionManager
	sender        interfaces.EmailSender
	encryptionKey string
	log           logger.Logger
}

func NewConnectService(
	accounts interfaces.AccountRepository,
	authRequests interfaces.AuthorizationRequestRepository,
	uidTracking interfaces.UidTrackingRepository,
	connections interfaces.IMAPConnectionManager,
	sender interfaces.EmailSender,
	encryptionKey string,
	log logger.Logger,
) interfaces.ConnectService {
	return &connectService{
		accounts:      accounts,
		authRequests:  authRequests,
		uidTracking:   uidTracking,
		connections:   connections,
		sender:        sender,
		encryptionKey: encryptionKey,
		log:           log,
	}
}

func (s *connectService) ValidateAuthorizeParams(ctx context.Context, app *models.App, params *dto.AuthorizeParams) error {
	if params.ResponseType != "" && params.ResponseType != "code" {
		return invalidRequest("response_type must be code")
	}
	if params.ClientID == "" {
		return invalidRequest("client_id is required")
	}
	if params.ClientID != app.UUID {
		return ErrInvalidClient
	}
	if params.RedirectURI == "" {
		return invalidRequest("redirect_uri is required")
	}
	parsed, err := url.Parse(params.RedirectURI)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return invalidRequest("redirect_uri must be an absolute http(s) URL")
	}
	return nil
}

// ProcessAuthorization verifies the submitted credentials against both IMAP
// and SMTP before any state is persisted. A mailbox that cannot be logged
// into never gets an authorization code.
func (s *connectService) ProcessAuthorization(ctx context.Context, app *models.App, request *dto.ProcessRequest) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "connectService.ProcessAuthorization")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagApp(span, app.ID)

	if err := s.ValidateAuthorizeParams(ctx, app, &request.AuthorizeParams); err != nil {
		return "", err
	}

	validation := mailvalidate.ValidateEmailSyntax(request.Email)
	if !validation.IsValid {
		return "", invalidRequest("email address is not valid")
	}
	email := validation.CleanEmail

	if request.Password == "" {
		return "", invalidRequest("password is required")
	}
	if request.IMAPHost == "" {
		return "", invalidRequest("imap_host is required")
	}

	candidate, err := s.buildCandidateAccount(app, email, request)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	if err := s.verifyProviderLogin(ctx, candidate); err != nil {
		return "", err
	}

	account, err := s.upsertAccount(ctx, app, candidate)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", fmt.Errorf("failed to store account: %w", err)
	}

	code, err := utils.GenerateAuthorizationCode()
	if err != nil {
		tracing.TraceErr(span, err)
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}

	authRequest := &models.AuthorizationRequest{
		AppID:       app.ID,
		AccountID:   account.ID,
		ClientID:    request.ClientID,
		RedirectURI: request.RedirectURI,
		State:       request.State,
		Scope:       request.Scope,
		Status:      enum.AuthorizationPending,
		Code:        code,
		ExpiresAt:   utils.Now().Add(authorizationCodeTTL),
	}
	if err := s.authRequests.Create(ctx, authRequest); err != nil {
		tracing.TraceErr(span, err)
		return "", fmt.Errorf("failed to store authorization request: %w", err)
	}

	tracing.TagGrant(span, account.UUID)
	s.log.Infof("issued authorization code for %s (grant %s)", email, account.UUID)

	return buildRedirectURL(request.RedirectURI, code, request.State), nil
}

func (s *connectService) buildCandidateAccount(app *models.App, email string, request *dto.ProcessRequest) (*models.Account, error) {
	credentials, err := utils.EncryptString(request.Password, s.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	providerContext := models.JSONMap{"imap_host": request.IMAPHost}
	if request.IMAPPort > 0 {
		providerContext["imap_port"] = request.IMAPPort
	}
	if request.SMTPHost != "" {
		providerContext["smtp_host"] = request.SMTPHost
	}
	if request.SMTPPort > 0 {
		providerContext["smtp_port"] = request.SMTPPort
	}

	return &models.Account{
		AppID:           app.ID,
		Email:           email,
		Provider:        enum.EmailProviderIMAP,
		Credentials:     credentials,
		ProviderContext: providerContext,
		Status:          enum.AccountStatusPending,
	}, nil
}

func (s *connectService) verifyProviderLogin(ctx context.Context, account *models.Account) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "connectService.verifyProviderLogin")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	session, err := s.connections.Acquire(ctx, account, "")
	if err != nil {
		tracing.TraceErr(span, err)
		return invalidRequest(fmt.Sprintf("IMAP login failed: %v", err))
	}
	// The account is not persisted yet, so the session must not be pooled.
	s.connections.Close(ctx, session)

	if err := s.sender.VerifyLogin(ctx, account); err != nil {
		tracing.TraceErr(span, err)
		return invalidRequest(fmt.Sprintf("SMTP login failed: %v", err))
	}

	return nil
}

// upsertAccount refreshes credentials on re-authorization. An account that is
// already active stays active; anything else waits in pending until the code
// is exchanged.
func (s *connectService) upsertAccount(ctx context.Context, app *models.App, candidate *models.Account) (*models.Account, error) {
	existing, err := s.accounts.GetByAppAndEmail(ctx, app.ID, candidate.Email)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		candidate.UUID = uuid.NewString()
		if err := s.accounts.Create(ctx, candidate); err != nil {
			return nil, err
		}
		return candidate, nil
	}

	existing.Credentials = candidate.Credentials
	existing.ProviderContext = candidate.ProviderContext
	if existing.Status != enum.AccountStatusActive {
		existing.Status = enum.AccountStatusPending
	}
	if err := s.accounts.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *connectService) ExchangeToken(ctx context.Context, app *models.App, request *dto.TokenRequest) (*dto.TokenResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "connectService.ExchangeToken")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagApp(span, app.ID)

	if request.GrantType != "authorization_code" {
		return nil, ErrUnsupportedGrantType
	}
	if request.ClientID != app.UUID {
		return nil, ErrInvalidClient
	}

	authRequest, err := s.authRequests.GetByCode(ctx, request.Code)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to look up authorization code: %w", err)
	}
	if authRequest == nil {
		return nil, ErrInvalidCode
	}
	if !authRequest.CodeValid(utils.Now()) {
		if !authRequest.CodeUsed {
			if err := s.authRequests.UpdateStatus(ctx, authRequest.ID, enum.AuthorizationExpired); err != nil {
				s.log.Warnf("failed to mark authorization request %s expired: %v", authRequest.ID, err)
			}
		}
		return nil, ErrCodeExpired
	}
	if authRequest.RedirectURI != request.RedirectURI {
		return nil, ErrRedirectURIMismatch
	}
	if authRequest.AppID != app.ID {
		return nil, ErrWrongApp
	}

	if err := s.authRequests.MarkCodeUsed(ctx, authRequest.ID); err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}

	account, err := s.accounts.GetByID(ctx, authRequest.AccountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if account == nil {
		return nil, ErrInvalidGrant
	}

	if err := s.accounts.UpdateStatus(ctx, account.ID, enum.AccountStatusActive); err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to activate account: %w", err)
	}

	tracing.TagGrant(span, account.UUID)
	s.log.Infof("activated grant %s for %s", account.UUID, account.Email)

	return &dto.TokenResponse{
		RequestID:   uuid.NewString(),
		AccessToken: account.UUID,
		TokenType:   "bearer",
		GrantID:     account.UUID,
		Email:       account.Email,
		Provider:    account.Provider.String(),
		Scope:       authRequest.Scope,
	}, nil
}

// DeleteGrant deactivates the account and drops its watermarks so a future
// re-authorization starts ingestion from scratch. Deleting an unknown or
// already deleted grant is an invalid-grant error.
func (s *connectService) DeleteGrant(ctx context.Context, app *models.App, grantID string) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "connectService.DeleteGrant")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagApp(span, app.ID)
	tracing.TagGrant(span, grantID)

	account, err := s.accounts.GetByAppAndUUID(ctx, app.ID, grantID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if account == nil || account.Status == enum.AccountStatusInactive {
		return nil, ErrInvalidGrant
	}

	if err := s.accounts.UpdateStatus(ctx, account.ID, enum.AccountStatusInactive); err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to deactivate account: %w", err)
	}
	if err := s.uidTracking.DeleteByAccount(ctx, account.ID); err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to delete uid tracking: %w", err)
	}

	s.log.Infof("deleted grant %s (%s)", grantID, account.Email)
	return account, nil
}

func buildRedirectURL(redirectURI, code, state string) string {
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return redirectURI
	}
	query := parsed.Query()
	query.Set("code", code)
	if state != "" {
		query.Set("state", state)
	}
	query.Set("source", "nolas")
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
