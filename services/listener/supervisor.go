package listener

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/nolashq/nolas/config"
	"github.com/nolashq/nolas/dto"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/models"
	"github.com/nolashq/nolas/internal/tracing"
	"github.com/nolashq/nolas/internal/utils"
	"github.com/nolashq/nolas/services/imap"
	"github.com/nolashq/nolas/services/storage"
)

const (
	pollSleepSlice    = 500 * time.Millisecond
	backoffSleepSlice = 100 * time.Millisecond
	maxErrorBackoff   = 120 * time.Second
)

// Supervisor tails one (account, folder) pair: it polls for UIDs above the
// stored watermark, translates and delivers each new message, and advances
// the watermark only after that message's webhook attempt finished. It
// retires itself after MaxConsecutiveFailures.
type Supervisor struct {
	app     *models.App
	account *models.Account
	folder  string
	cfg     *config.IMAPConfig

	connections interfaces.IMAPConnectionManager
	translator  interfaces.Translator
	dispatcher  interfaces.WebhookDispatcher
	emails      interfaces.EmailRepository
	uidTracking interfaces.UidTrackingRepository
	health      interfaces.ConnectionHealthRepository
	events      interfaces.EventsPublisher // optional
	archive     interfaces.StorageService  // optional
	log         logger.Logger
}

type SupervisorDeps struct {
	Connections interfaces.IMAPConnectionManager
	Translator  interfaces.Translator
	Dispatcher  interfaces.WebhookDispatcher
	Emails      interfaces.EmailRepository
	UidTracking interfaces.UidTrackingRepository
	Health      interfaces.ConnectionHealthRepository
	Events      interfaces.EventsPublisher
	Archive     interfaces.StorageService
	Log         logger.Logger
}

func NewSupervisor(app *models.App, account *models.Account, folder string, cfg *config.IMAPConfig, deps SupervisorDeps) *Supervisor {
	return &Supervisor{
		app:         app,
		account:     account,
		folder:      folder,
		cfg:         cfg,
		connections: deps.Connections,
		translator:  deps.Translator,
		dispatcher:  deps.Dispatcher,
		emails:      deps.Emails,
		uidTracking: deps.UidTracking,
		health:      deps.Health,
		events:      deps.Events,
		archive:     deps.Archive,
		log:         deps.Log,
	}
}

// Run blocks until ctx is cancelled or the failure cap retires the
// supervisor. Errors never escape; they feed ConnectionHealth and backoff.
func (s *Supervisor) Run(ctx context.Context) {
	if !sleepSlices(ctx, s.startupJitter(), pollSleepSlice) {
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		idled, err := s.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if s.handleFailure(ctx, err) {
				return
			}
			continue
		}

		if !idled {
			if !sleepSlices(ctx, time.Duration(s.cfg.PollInterval)*time.Second, pollSleepSlice) {
				return
			}
		}
	}
}

// startupJitter spreads supervisor start times so a restart does not slam
// the provider with simultaneous logins.
func (s *Supervisor) startupJitter() time.Duration {
	max := s.cfg.PollJitter
	if half := s.cfg.PollInterval / 2; half < max {
		max = half
	}
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Float64() * float64(max) * float64(time.Second))
}

// handleFailure records the error and backs off. Returns true when the
// supervisor must retire.
func (s *Supervisor) handleFailure(ctx context.Context, pollErr error) bool {
	failures, err := s.health.RecordFailure(ctx, s.account.ID, s.folder, pollErr.Error())
	if err != nil {
		s.log.Errorf("failed to record connection failure for %s/%s: %v", s.account.Email, s.folder, err)
		failures++
	}

	if imap.IsReconnectableError(pollErr) {
		s.log.Warnf("reconnectable error on %s/%s (failure %d): %v", s.account.Email, s.folder, failures, pollErr)
	} else {
		s.log.Errorf("poll error on %s/%s (failure %d): %v", s.account.Email, s.folder, failures, pollErr)
	}

	if failures >= models.MaxConsecutiveFailures {
		s.log.Errorf("retiring supervisor for %s/%s after %d consecutive failures", s.account.Email, s.folder, failures)
		return true
	}

	backoff := time.Duration(10*failures) * time.Second
	if backoff > maxErrorBackoff {
		backoff = maxErrorBackoff
	}
	return !sleepSlices(ctx, backoff, backoffSleepSlice)
}

// poll runs one ingestion pass. When the server supports IDLE the session is
// parked there afterwards, so the caller skips its interval sleep.
func (s *Supervisor) poll(ctx context.Context) (idled bool, err error) {
	session, err := s.connections.Acquire(ctx, s.account, s.folder)
	if err != nil {
		return false, err
	}

	if err := s.ingest(ctx, session); err != nil {
		s.connections.Close(ctx, session)
		return false, err
	}

	if s.cfg.IdleTimeout > 0 && session.SupportsIdle() {
		err := session.Idle(ctx, time.Duration(s.cfg.IdleTimeout)*time.Second)
		if err != nil {
			s.connections.Close(ctx, session)
			return false, err
		}
		if ctx.Err() != nil {
			s.connections.Close(ctx, session)
			return true, nil
		}
		// Something happened in the folder (or the timeout fired); sweep
		// before handing the session back.
		if err := s.ingest(ctx, session); err != nil {
			s.connections.Close(ctx, session)
			return false, err
		}
		s.connections.Release(ctx, s.account, session)
		return true, nil
	}

	s.connections.Release(ctx, s.account, session)
	return false, nil
}

func (s *Supervisor) ingest(ctx context.Context, session interfaces.IMAPSession) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Supervisor.ingest")
	defer span.Finish()
	tracing.TagComponentListener(span)
	tracing.TagAccount(span, s.account.ID)
	tracing.TagFolder(span, s.folder)

	watermark, err := s.uidTracking.GetLastSeenUID(ctx, s.account.ID, s.folder)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	uids, err := session.SearchAll(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if err := s.uidTracking.TouchLastChecked(ctx, s.account.ID, s.folder); err != nil {
		s.log.Warnf("failed to touch uid tracking for %s/%s: %v", s.account.Email, s.folder, err)
	}

	newUIDs := make([]uint32, 0)
	for _, uid := range uids {
		if uid > watermark {
			newUIDs = append(newUIDs, uid)
		}
	}
	span.SetTag("new_uids", len(newUIDs))

	if len(newUIDs) == 0 {
		return s.recordSuccess(ctx)
	}

	fetched, err := session.FetchMessages(ctx, newUIDs)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	for _, uid := range newUIDs {
		if ctx.Err() != nil {
			return nil
		}
		raw, ok := fetched[uid]
		if !ok {
			// Deleted between SEARCH and FETCH; nothing to deliver.
			if err := s.uidTracking.SetLastSeenUID(ctx, s.account.ID, s.folder, uid); err != nil {
				return err
			}
			continue
		}
		if err := s.processMessage(ctx, uid, raw); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}

	return s.recordSuccess(ctx)
}

// processMessage handles one UID end to end and advances the watermark once
// its webhook attempt ran to a terminal outcome, delivered or not. A delivery
// aborted by shutdown is not terminal and must not advance. Only
// index/watermark write failures propagate; they would otherwise cause
// silent skips.
func (s *Supervisor) processMessage(ctx context.Context, uid uint32, raw []byte) error {
	message, err := s.translator.Translate(ctx, raw, s.account.UUID, s.folder)
	if err != nil {
		s.log.Warnf("failed to parse UID %d in %s/%s, skipping: %v", uid, s.account.Email, s.folder, err)
		return s.uidTracking.SetLastSeenUID(ctx, s.account.ID, s.folder, uid)
	}

	messageID := utils.FormatMessageID(message.ID)

	// Messages sent through our own API are already indexed; delivering a
	// webhook for them would echo the app's own send back at it.
	existing, err := s.emails.GetByMessageID(ctx, s.account.ID, messageID)
	if err != nil {
		return err
	}
	selfSent := existing != nil

	if !selfSent {
		if err := s.dispatcher.DispatchMessageCreated(ctx, s.app, s.account, s.folder, uid, message); err != nil {
			if ctx.Err() != nil {
				// Shutdown cut the delivery short; the attempt never reached
				// the endpoint. Leave the watermark so the next run retries.
				return nil
			}
			s.log.Warnf("webhook delivery failed for UID %d in %s/%s: %v", uid, s.account.Email, s.folder, err)
		}
		s.publishEvent(ctx, uid, message)
	}

	s.archiveRaw(ctx, uid, raw)

	if err := s.emails.Upsert(ctx, &models.Email{
		AccountID: s.account.ID,
		MessageID: messageID,
		ThreadID:  message.ThreadID,
		Folder:    s.folder,
		UID:       uid,
	}); err != nil {
		return err
	}

	return s.uidTracking.SetLastSeenUID(ctx, s.account.ID, s.folder, uid)
}

func (s *Supervisor) publishEvent(ctx context.Context, uid uint32, message *dto.Message) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, "message.created", &dto.Event{
		ID:        fmt.Sprintf("%s-%s-%d", s.account.ID, s.folder, uid),
		Type:      "message.created",
		AppUUID:   s.app.UUID,
		GrantID:   s.account.UUID,
		Folder:    s.folder,
		Timestamp: utils.Now().Unix(),
		Data:      message,
	})
	if err != nil {
		s.log.Warnf("failed to publish message.created event for UID %d: %v", uid, err)
	}
}

func (s *Supervisor) archiveRaw(ctx context.Context, uid uint32, raw []byte) {
	if s.archive == nil {
		return
	}
	key := storage.RawMessageKey(s.account, s.folder, uid)
	if err := s.archive.Upload(ctx, key, raw, "message/rfc822"); err != nil {
		s.log.Warnf("failed to archive %s: %v", key, err)
	}
}

func (s *Supervisor) recordSuccess(ctx context.Context) error {
	if err := s.health.RecordSuccess(ctx, s.account.ID, s.folder); err != nil {
		s.log.Warnf("failed to record connection success for %s/%s: %v", s.account.Email, s.folder, err)
	}
	return nil
}

// sleepSlices sleeps in small slices so shutdown is observed promptly.
// Returns false when ctx was cancelled.
func sleepSlices(ctx context.Context, total, slice time.Duration) bool {
	for total > 0 {
		d := slice
		if total < slice {
			d = total
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
		}
		total -= d
	}
	return ctx.Err() == nil
}
