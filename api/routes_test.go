package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolashq/nolas/dto"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/enum"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/models"
	"github.com/nolashq/nolas/internal/repository"
	"github.com/nolashq/nolas/services"
	"github.com/nolashq/nolas/services/connect"
)

type stubAppRepo struct {
	app *models.App
}

func (s *stubAppRepo) Create(ctx context.Context, app *models.App) error { return nil }
func (s *stubAppRepo) GetByID(ctx context.Context, id string) (*models.App, error) {
	if s.app != nil && s.app.ID == id {
		return s.app, nil
	}
	return nil, nil
}
func (s *stubAppRepo) GetByAPIKey(ctx context.Context, apiKey string) (*models.App, error) {
	if s.app != nil && s.app.APIKey == apiKey {
		return s.app, nil
	}
	return nil, nil
}
func (s *stubAppRepo) GetByUUID(ctx context.Context, uuid string) (*models.App, error) {
	if s.app != nil && s.app.UUID == uuid {
		return s.app, nil
	}
	return nil, nil
}
func (s *stubAppRepo) Update(ctx context.Context, app *models.App) error { return nil }

type stubAccountRepo struct {
	account *models.Account
}

func (s *stubAccountRepo) Create(ctx context.Context, account *models.Account) error { return nil }
func (s *stubAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return nil, nil
}
func (s *stubAccountRepo) GetByAppAndUUID(ctx context.Context, appID, uuid string) (*models.Account, error) {
	if s.account != nil && s.account.AppID == appID && s.account.UUID == uuid {
		return s.account, nil
	}
	return nil, nil
}
func (s *stubAccountRepo) GetByAppAndEmail(ctx context.Context, appID, email string) (*models.Account, error) {
	return nil, nil
}
func (s *stubAccountRepo) GetAllActive(ctx context.Context) ([]*models.Account, error) {
	return nil, nil
}
func (s *stubAccountRepo) Update(ctx context.Context, account *models.Account) error { return nil }
func (s *stubAccountRepo) UpdateStatus(ctx context.Context, id string, status enum.AccountStatus) error {
	return nil
}

type stubReader struct {
	result *interfaces.MessageResult
	page   []dto.Message
	err    error
}

func (s *stubReader) GetMessage(ctx context.Context, account *models.Account, messageID string) (*interfaces.MessageResult, error) {
	return s.result, s.err
}

func (s *stubReader) ListMessages(ctx context.Context, account *models.Account, folder string, limit, offset int) ([]dto.Message, error) {
	return s.page, s.err
}

type stubSender struct{}

func (stubSender) Send(ctx context.Context, account *models.Account, request *dto.SendMessageRequest) (*dto.Message, error) {
	return &dto.Message{ID: "<sent@example.com>", GrantID: account.UUID, Object: "message"}, nil
}
func (stubSender) VerifyLogin(ctx context.Context, account *models.Account) error { return nil }

type stubFolders struct{}

func (stubFolders) MonitoredFolders(ctx context.Context, account *models.Account) ([]string, error) {
	return []string{"INBOX", "Sent"}, nil
}

type stubTranslator struct{}

func (stubTranslator) Translate(ctx context.Context, raw []byte, grantID, folder string) (*dto.Message, error) {
	return nil, nil
}
func (stubTranslator) ExtractAttachment(ctx context.Context, raw []byte, attachmentID string) (*dto.AttachmentContent, error) {
	return nil, nil
}

type stubDispatcher struct{}

func (stubDispatcher) DispatchMessageCreated(ctx context.Context, app *models.App, account *models.Account, folder string, uid uint32, message *dto.Message) error {
	return nil
}
func (stubDispatcher) SendTest(ctx context.Context, app *models.App, account *models.Account) error {
	return nil
}

type stubConnect struct {
	deleteErr error
	tokenErr  error
}

func (s *stubConnect) ValidateAuthorizeParams(ctx context.Context, app *models.App, params *dto.AuthorizeParams) error {
	return nil
}
func (s *stubConnect) ProcessAuthorization(ctx context.Context, app *models.App, request *dto.ProcessRequest) (string, error) {
	return "https://example.com/callback?code=abc", nil
}
func (s *stubConnect) ExchangeToken(ctx context.Context, app *models.App, request *dto.TokenRequest) (*dto.TokenResponse, error) {
	if s.tokenErr != nil {
		return nil, s.tokenErr
	}
	return &dto.TokenResponse{RequestID: "req", GrantID: "grant-1", Email: "user@example.com", Provider: "imap", TokenType: "bearer"}, nil
}
func (s *stubConnect) DeleteGrant(ctx context.Context, app *models.App, grantID string) (*models.Account, error) {
	if s.deleteErr != nil {
		return nil, s.deleteErr
	}
	return &models.Account{UUID: grantID}, nil
}

type apiFixture struct {
	router     *gin.Engine
	apiKey     string
	grantID    string
	reader     *stubReader
	connectSvc *stubConnect
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewAppLogger(&logger.Config{DevMode: true})
	log.InitLogger()

	app := &models.App{ID: "app_1", UUID: "app-uuid", APIKey: "sk_test_123"}
	account := &models.Account{
		ID:     "acct_1",
		UUID:   "grant-1",
		AppID:  "app_1",
		Email:  "user@example.com",
		Status: enum.AccountStatusActive,
	}

	reader := &stubReader{}
	connectSvc := &stubConnect{}

	repos := &repository.Repositories{
		AppRepository:     &stubAppRepo{app: app},
		AccountRepository: &stubAccountRepo{account: account},
	}
	svcs := &services.Services{
		FolderService:     stubFolders{},
		Translator:        stubTranslator{},
		WebhookDispatcher: stubDispatcher{},
		MessageReader:     reader,
		EmailSender:       stubSender{},
		ConnectService:    connectSvc,
	}

	router := gin.New()
	RegisterRoutes(router, svcs, repos, log)

	return &apiFixture{
		router:     router,
		apiKey:     "sk_test_123",
		grantID:    "grant-1",
		reader:     reader,
		connectSvc: connectSvc,
	}
}

func (f *apiFixture) request(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		RequestID string `json:"request_id"`
		Error     struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.RequestID)
	return body.Error.Type, body.Error.Message
}

func TestHealthNeedsNoAuth(t *testing.T) {
	f := newAPIFixture(t)
	w := f.request(t, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestBearerAuth(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("missing header", func(t *testing.T) {
		w := f.request(t, http.MethodGet, "/v3/grants/grant-1/messages", "", false)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		errType, _ := decodeError(t, w)
		assert.Equal(t, "invalid_request_error", errType)
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v3/grants/grant-1/messages", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestListMessages(t *testing.T) {
	f := newAPIFixture(t)
	f.reader.page = []dto.Message{{ID: "<m1@example.com>", Object: "message"}}

	t.Run("ok", func(t *testing.T) {
		w := f.request(t, http.MethodGet, "/v3/grants/grant-1/messages?limit=10", "", true)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"grant_id":"grant-1"`)
		assert.Contains(t, w.Body.String(), "<m1@example.com>")
	})

	t.Run("limit out of range", func(t *testing.T) {
		w := f.request(t, http.MethodGet, "/v3/grants/grant-1/messages?limit=500", "", true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		errType, _ := decodeError(t, w)
		assert.Equal(t, "invalid_request_error", errType)
	})

	t.Run("unknown grant", func(t *testing.T) {
		w := f.request(t, http.MethodGet, "/v3/grants/nope/messages", "", true)
		assert.Equal(t, http.StatusNotFound, w.Code)
		errType, _ := decodeError(t, w)
		assert.Equal(t, "not_found_error", errType)
	})
}

func TestGetMessage(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("not found", func(t *testing.T) {
		f.reader.result = nil
		w := f.request(t, http.MethodGet, "/v3/grants/grant-1/messages/some-id", "", true)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("found", func(t *testing.T) {
		f.reader.result = &interfaces.MessageResult{
			Message: &dto.Message{ID: "<m1@example.com>", GrantID: "grant-1", Object: "message", Date: time.Now().Unix()},
			Folder:  "INBOX",
			UID:     7,
		}
		w := f.request(t, http.MethodGet, "/v3/grants/grant-1/messages/m1@example.com", "", true)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "<m1@example.com>")
	})
}

func TestSendMessage(t *testing.T) {
	f := newAPIFixture(t)
	body := `{"to":[{"email":"dest@example.com"}],"subject":"hi","body":"<p>hi</p>"}`
	w := f.request(t, http.MethodPost, "/v3/grants/grant-1/messages/send", body, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<sent@example.com>")
}

func TestDeleteGrant(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("ok", func(t *testing.T) {
		w := f.request(t, http.MethodDelete, "/v3/grants/grant-1", "", true)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"success":true`)
	})

	t.Run("repeated delete is invalid grant", func(t *testing.T) {
		f.connectSvc.deleteErr = connect.ErrInvalidGrant
		w := f.request(t, http.MethodDelete, "/v3/grants/grant-1", "", true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		_, message := decodeError(t, w)
		assert.Equal(t, "invalid grant", message)
	})
}

func TestTokenErrorMapping(t *testing.T) {
	f := newAPIFixture(t)
	f.connectSvc.tokenErr = connect.ErrInvalidClient

	body := `{"grant_type":"authorization_code","code":"abc","redirect_uri":"https://example.com/cb","client_id":"x"}`
	w := f.request(t, http.MethodPost, "/v3/connect/token", body, true)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListFolders(t *testing.T) {
	f := newAPIFixture(t)
	w := f.request(t, http.MethodGet, "/v3/grants/grant-1/folders", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"INBOX"`)

	w = f.request(t, http.MethodGet, "/v3/grants/grant-1/folders/Sent", "", true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.request(t, http.MethodGet, "/v3/grants/grant-1/folders/Nope", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
