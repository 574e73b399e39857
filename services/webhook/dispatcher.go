package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/nolashq/nolas/config"
	"github.com/nolashq/nolas/dto"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/models"
	"github.com/nolashq/nolas/internal/tracing"
	"github.com/nolashq/nolas/internal/utils"
)

const (
	// EventTypeMessageCreated is the only event type currently emitted.
	EventTypeMessageCreated = "message.created"

	// SignatureHeader carries the hex HMAC-SHA256 of the exact body bytes.
	SignatureHeader = "x-nylas-signature"

	// maxConcurrentDeliveries bounds simultaneous webhook POSTs.
	maxConcurrentDeliveries = 10

	// responseBodyLogLimit caps what gets persisted from app responses.
	responseBodyLogLimit = 1000

	retryBase = 1 * time.Second
)

type dispatcher struct {
	cfg         *config.WebhookConfig
	log         logger.Logger
	webhookLogs interfaces.WebhookLogRepository
	httpClient  *http.Client
	semaphore   chan struct{}
	retryMin    time.Duration
}

func NewDispatcher(cfg *config.WebhookConfig, webhookLogs interfaces.WebhookLogRepository, log logger.Logger) interfaces.WebhookDispatcher {
	return &dispatcher{
		cfg:         cfg,
		log:         log,
		webhookLogs: webhookLogs,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		semaphore: make(chan struct{}, maxConcurrentDeliveries),
		retryMin:  retryBase,
	}
}

// DispatchMessageCreated delivers one message.created event, retrying on
// transient failures. Delivery is at-most-once from the app's point of view:
// exhausting retries is reported but callers still advance their watermark.
func (d *dispatcher) DispatchMessageCreated(ctx context.Context, app *models.App, account *models.Account, folder string, uid uint32, message *dto.Message) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "dispatcher.DispatchMessageCreated")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagApp(span, app.ID)
	tracing.TagAccount(span, account.ID)
	tracing.TagFolder(span, folder)

	if app.WebhookURL == "" {
		return nil
	}
	if !app.WantsTrigger(EventTypeMessageCreated) {
		span.SetTag("skipped", "trigger_filtered")
		return nil
	}

	return d.deliver(ctx, app, account, folder, uid, EventTypeMessageCreated, message)
}

// SendTest fires a synthetic event at the app's endpoint so operators can
// verify URL and secret without waiting for real mail.
func (d *dispatcher) SendTest(ctx context.Context, app *models.App, account *models.Account) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "dispatcher.SendTest")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagApp(span, app.ID)

	if app.WebhookURL == "" {
		return errors.New("app has no webhook url configured")
	}

	grantID := ""
	accountID := ""
	email := "test@example.com"
	if account != nil {
		grantID = account.UUID
		accountID = account.ID
		email = account.Email
	}

	message := &dto.Message{
		ID:      utils.GenerateMessageID(email),
		GrantID: grantID,
		Object:  "message",
		Subject: "Test webhook delivery",
		Body:    "This is a test event.",
		Snippet: "This is a test event.",
		From:    []dto.EmailAddress{{Name: email, Email: email}},
		To:      []dto.EmailAddress{{Name: email, Email: email}},
		Date:    utils.Now().Unix(),
		Unread:  true,
		Folders: []string{"INBOX"},
	}

	return d.deliver(ctx, app, &models.Account{ID: accountID, UUID: grantID}, "INBOX", 0, EventTypeMessageCreated, message)
}

func (d *dispatcher) deliver(ctx context.Context, app *models.App, account *models.Account, folder string, uid uint32, eventType string, object interface{}) error {
	select {
	case d.semaphore <- struct{}{}:
		defer func() { <-d.semaphore }()
	case <-ctx.Done():
		return ctx.Err()
	}

	eventID := uuid.NewString()
	retry := &backoff.Backoff{
		Min:    d.retryMin,
		Max:    5 * time.Minute,
		Factor: 2,
	}

	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxRetries; attempt++ {
		envelope := dto.WebhookEnvelope{
			SpecVersion:            "1.0",
			Type:                   eventType,
			Source:                 "imap",
			ID:                     eventID,
			Time:                   utils.Now().Unix(),
			WebhookDeliveryAttempt: attempt,
			Data: dto.WebhookData{
				ApplicationID: app.UUID,
				Object:        object,
			},
		}

		body, err := json.Marshal(envelope)
		if err != nil {
			return errors.Wrap(err, "failed to marshal webhook envelope")
		}

		statusCode, responseBody, err := d.post(ctx, app, body)
		d.persistAttempt(ctx, app, account, folder, uid, eventID, eventType, attempt, statusCode, responseBody, err)

		switch {
		case err == nil && statusCode >= 200 && statusCode < 300:
			return nil
		case err == nil && statusCode >= 400 && statusCode < 500:
			// Client errors never heal on retry.
			return errors.Errorf("webhook rejected with status %d", statusCode)
		case err != nil:
			lastErr = err
		default:
			lastErr = errors.Errorf("webhook returned status %d", statusCode)
		}

		if attempt < d.cfg.MaxRetries {
			select {
			case <-time.After(retry.Duration()):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	d.log.Warnf("webhook delivery to %s failed after %d attempts: %v", app.WebhookURL, d.cfg.MaxRetries, lastErr)
	return errors.Wrapf(lastErr, "webhook delivery failed after %d attempts", d.cfg.MaxRetries)
}

// post sends the exact body bytes, signing them when the app has a secret.
func (d *dispatcher) post(ctx context.Context, app *models.App, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, app.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, "", errors.Wrap(err, "failed to build webhook request")
	}

	req.Header.Set("Content-Type", "application/json")
	if app.WebhookSecret != "" {
		req.Header.Set(SignatureHeader, Sign(app.WebhookSecret, body))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, "", errors.Wrap(err, "webhook request failed")
	}
	defer resp.Body.Close()

	responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyLogLimit+1))
	return resp.StatusCode, string(responseBody), nil
}

func (d *dispatcher) persistAttempt(ctx context.Context, app *models.App, account *models.Account, folder string, uid uint32, eventID, eventType string, attempt, statusCode int, responseBody string, deliveryErr error) {
	logRow := &models.WebhookLog{
		AppID:        app.ID,
		EventID:      eventID,
		EventType:    eventType,
		Folder:       folder,
		UID:          uid,
		WebhookURL:   app.WebhookURL,
		Attempt:      attempt,
		ResponseBody: utils.TruncateBytes(responseBody, responseBodyLogLimit),
	}
	if account != nil {
		logRow.AccountID = account.ID
	}
	if deliveryErr != nil {
		logRow.Error = utils.TruncateBytes(deliveryErr.Error(), responseBodyLogLimit)
	} else {
		logRow.StatusCode = utils.Ptr(statusCode)
		if statusCode >= 200 && statusCode < 300 {
			logRow.DeliveredAt = utils.NowPtr()
		}
	}

	if err := d.webhookLogs.Create(ctx, logRow); err != nil {
		d.log.Errorf("failed to persist webhook log: %v", err)
	}
}

// Sign computes the lowercase hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
