package webhook

import (
	"context"
	"crypto/hmac"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolashq/nolas/config"
	"github.com/nolashq/nolas/dto"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/models"
)

type fakeWebhookLogRepo struct {
	mu   sync.Mutex
	rows []*models.WebhookLog
}

func (f *fakeWebhookLogRepo) Create(ctx context.Context, log *models.WebhookLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, log)
	return nil
}

func (f *fakeWebhookLogRepo) all() []*models.WebhookLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.WebhookLog(nil), f.rows...)
}

func testLogger() logger.Logger {
	l := logger.NewAppLogger(&logger.Config{DevMode: true})
	l.InitLogger()
	return l
}

func testMessage() *dto.Message {
	return &dto.Message{
		ID:      "<m1@example.com>",
		GrantID: "grant-uuid",
		Object:  "message",
		Subject: "hi",
	}
}

func testApp(url string) *models.App {
	return &models.App{
		ID:         "app_1",
		UUID:       "app-uuid",
		WebhookURL: url,
	}
}

func testAccount() *models.Account {
	return &models.Account{ID: "acct_1", UUID: "grant-uuid", Email: "user@example.com"}
}

func newTestDispatcher(logs *fakeWebhookLogRepo, maxRetries int) *dispatcher {
	d := NewDispatcher(&config.WebhookConfig{MaxRetries: maxRetries, Timeout: 5}, logs, testLogger()).(*dispatcher)
	d.retryMin = time.Millisecond
	return d
}

func TestDispatch_SuccessFirstAttempt(t *testing.T) {
	var received []byte
	var signature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		signature = r.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	logs := &fakeWebhookLogRepo{}
	d := newTestDispatcher(logs, 3)
	app := testApp(server.URL)
	app.WebhookSecret = "topsecret"

	err := d.DispatchMessageCreated(context.Background(), app, testAccount(), "INBOX", 7, testMessage())
	require.NoError(t, err)

	// Signature covers the exact body bytes.
	require.NotEmpty(t, signature)
	assert.True(t, hmac.Equal([]byte(signature), []byte(Sign("topsecret", received))))
	assert.Contains(t, string(received), `"type":"message.created"`)
	assert.Contains(t, string(received), `"specversion":"1.0"`)
	assert.Contains(t, string(received), `"application_id":"app-uuid"`)

	rows := logs.all()
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Attempt)
	require.NotNil(t, rows[0].StatusCode)
	assert.Equal(t, http.StatusOK, *rows[0].StatusCode)
	assert.NotNil(t, rows[0].DeliveredAt)
}

func TestDispatch_NoSecretNoSignature(t *testing.T) {
	var hadHeader bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hadHeader = r.Header.Get(SignatureHeader) != ""
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	logs := &fakeWebhookLogRepo{}
	d := newTestDispatcher(logs, 3)

	err := d.DispatchMessageCreated(context.Background(), testApp(server.URL), testAccount(), "INBOX", 1, testMessage())
	require.NoError(t, err)
	assert.False(t, hadHeader)
}

func TestDispatch_ClientErrorDoesNotRetry(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	logs := &fakeWebhookLogRepo{}
	d := newTestDispatcher(logs, 3)

	err := d.DispatchMessageCreated(context.Background(), testApp(server.URL), testAccount(), "INBOX", 1, testMessage())
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Len(t, logs.all(), 1)
}

func TestDispatch_ServerErrorRetries(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	logs := &fakeWebhookLogRepo{}
	d := newTestDispatcher(logs, 3)

	err := d.DispatchMessageCreated(context.Background(), testApp(server.URL), testAccount(), "INBOX", 1, testMessage())
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	rows := logs.all()
	require.Len(t, rows, 3)
	assert.Equal(t, 1, rows[0].Attempt)
	assert.Equal(t, 3, rows[2].Attempt)
	assert.NotNil(t, rows[2].DeliveredAt)
	assert.Nil(t, rows[0].DeliveredAt)
}

func TestDispatch_SkipsWithoutURL(t *testing.T) {
	logs := &fakeWebhookLogRepo{}
	d := newTestDispatcher(logs, 3)

	err := d.DispatchMessageCreated(context.Background(), testApp(""), testAccount(), "INBOX", 1, testMessage())
	require.NoError(t, err)
	assert.Empty(t, logs.all())
}

func TestDispatch_TriggerFilter(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	logs := &fakeWebhookLogRepo{}
	d := newTestDispatcher(logs, 3)

	app := testApp(server.URL)
	app.WebhookTriggers = []string{"grant.deleted"}

	err := d.DispatchMessageCreated(context.Background(), app, testAccount(), "INBOX", 1, testMessage())
	require.NoError(t, err)
	assert.Equal(t, 0, calls)

	app.WebhookTriggers = []string{"message.created"}
	err = d.DispatchMessageCreated(context.Background(), app, testAccount(), "INBOX", 1, testMessage())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestSendTest(t *testing.T) {
	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	logs := &fakeWebhookLogRepo{}
	d := newTestDispatcher(logs, 3)

	err := d.SendTest(context.Background(), testApp(server.URL), testAccount())
	require.NoError(t, err)
	assert.Contains(t, string(received), "Test webhook delivery")

	err = d.SendTest(context.Background(), testApp(""), testAccount())
	assert.Error(t, err)
}
