package messages

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/nolashq/nolas/dto"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/models"
	"github.com/nolashq/nolas/internal/tracing"
	"github.com/nolashq/nolas/internal/utils"
	"github.com/nolashq/nolas/services/storage"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

type messageService struct {
	connections interfaces.IMAPConnectionManager
	folders     interfaces.FolderService
	translator  interfaces.Translator
	emails      interfaces.EmailRepository
	archive     interfaces.StorageService // nil when the raw archive is not configured
	log         logger.Logger
}

func NewMessageService(
	connections interfaces.IMAPConnectionManager,
	folders interfaces.FolderService,
	translator interfaces.Translator,
	emails interfaces.EmailRepository,
	archive interfaces.StorageService,
	log logger.Logger,
) interfaces.MessageReader {
	return &messageService{
		connections: connections,
		folders:     folders,
		translator:  translator,
		emails:      emails,
		archive:     archive,
		log:         log,
	}
}

// GetMessage locates a message by Message-ID. When the local index has a
// folder/uid hint the message is fetched directly; a stale hint falls back
// to a header search across monitored folders. Returns (nil, nil) when the
// message cannot be found anywhere.
func (s *messageService) GetMessage(ctx context.Context, account *models.Account, messageID string) (*interfaces.MessageResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageService.GetMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)

	formatted := utils.FormatMessageID(messageID)

	triedFolder := ""
	if hint, err := s.emails.GetByMessageID(ctx, account.ID, formatted); err == nil && hint != nil && hint.Folder != "" && hint.UID > 0 {
		result, err := s.fetchByHint(ctx, account, formatted, hint)
		if err == nil && result != nil {
			span.SetTag("hint_hit", true)
			return result, nil
		}
		if err != nil {
			s.log.Debugf("uid hint lookup failed for %s in %s: %v", formatted, hint.Folder, err)
		}
		triedFolder = hint.Folder
	}

	return s.searchFolders(ctx, account, formatted, triedFolder)
}

func (s *messageService) fetchByHint(ctx context.Context, account *models.Account, messageID string, hint *models.Email) (*interfaces.MessageResult, error) {
	raw := s.readArchived(ctx, account, hint)
	if raw == nil {
		session, err := s.connections.Acquire(ctx, account, hint.Folder)
		if err != nil {
			return nil, err
		}

		raw, err = session.FetchMessage(ctx, hint.UID)
		if err != nil {
			s.connections.Close(ctx, session)
			return nil, err
		}
		s.connections.Release(ctx, account, session)
	}

	message, err := s.translator.Translate(ctx, raw, account.UUID, hint.Folder)
	if err != nil {
		return nil, err
	}

	// UIDs can be reassigned after folder rebuilds; only trust the hint
	// when the fetched message is really the one asked for.
	if utils.NormalizeMessageID(message.ID) != utils.NormalizeMessageID(messageID) {
		return nil, nil
	}

	return &interfaces.MessageResult{
		Message: message,
		Raw:     raw,
		Folder:  hint.Folder,
		UID:     hint.UID,
	}, nil
}

// readArchived serves a hinted read from the raw archive when one is
// configured, skipping an IMAP round trip.
func (s *messageService) readArchived(ctx context.Context, account *models.Account, hint *models.Email) []byte {
	if s.archive == nil {
		return nil
	}
	raw, err := s.archive.Download(ctx, storage.RawMessageKey(account, hint.Folder, hint.UID))
	if err != nil {
		s.log.Debugf("archive miss for %s %s/%d: %v", account.Email, hint.Folder, hint.UID, err)
		return nil
	}
	return raw
}

// searchFolders is the slow path: a header search across monitored folders,
// skipping the one the hint fast path already tried.
func (s *messageService) searchFolders(ctx context.Context, account *models.Account, messageID, skipFolder string) (*interfaces.MessageResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageService.searchFolders")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	folders, err := s.folders.MonitoredFolders(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	session, err := s.connections.Acquire(ctx, account, "")
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	for _, folder := range folders {
		if folder == skipFolder {
			continue
		}
		if err := session.Select(ctx, folder); err != nil {
			s.log.Debugf("cannot select %s for %s: %v", folder, account.Email, err)
			continue
		}

		uids, err := session.SearchHeader(ctx, "Message-Id", messageID)
		if err != nil {
			s.connections.Close(ctx, session)
			tracing.TraceErr(span, err)
			return nil, err
		}
		if len(uids) == 0 {
			continue
		}

		uid := uids[0]
		raw, err := session.FetchMessage(ctx, uid)
		if err != nil {
			s.connections.Close(ctx, session)
			tracing.TraceErr(span, err)
			return nil, err
		}
		s.connections.Release(ctx, account, session)

		message, err := s.translator.Translate(ctx, raw, account.UUID, folder)
		if err != nil {
			return nil, err
		}

		s.cacheLocation(ctx, account, message, folder, uid)

		return &interfaces.MessageResult{
			Message: message,
			Raw:     raw,
			Folder:  folder,
			UID:     uid,
		}, nil
	}

	s.connections.Release(ctx, account, session)
	return nil, nil
}

// cacheLocation refreshes the folder/uid hint so the next read skips the
// cross-folder search.
func (s *messageService) cacheLocation(ctx context.Context, account *models.Account, message *dto.Message, folder string, uid uint32) {
	err := s.emails.Upsert(ctx, &models.Email{
		AccountID: account.ID,
		MessageID: utils.FormatMessageID(message.ID),
		ThreadID:  message.ThreadID,
		Folder:    folder,
		UID:       uid,
	})
	if err != nil {
		s.log.Warnf("failed to cache message location: %v", err)
	}
}

// ListMessages returns a page of messages from one folder, newest first.
func (s *messageService) ListMessages(ctx context.Context, account *models.Account, folder string, limit, offset int) ([]dto.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageService.ListMessages")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)
	tracing.TagFolder(span, folder)

	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	session, err := s.connections.Acquire(ctx, account, folder)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	uids, err := session.SearchAll(ctx)
	if err != nil {
		s.connections.Close(ctx, session)
		tracing.TraceErr(span, err)
		return nil, err
	}

	// Newest first.
	page := make([]uint32, 0, limit)
	for i := len(uids) - 1 - offset; i >= 0 && len(page) < limit; i-- {
		page = append(page, uids[i])
	}

	fetched, err := session.FetchMessages(ctx, page)
	if err != nil {
		s.connections.Close(ctx, session)
		tracing.TraceErr(span, err)
		return nil, err
	}
	s.connections.Release(ctx, account, session)

	result := make([]dto.Message, 0, len(page))
	for _, uid := range page {
		raw, ok := fetched[uid]
		if !ok {
			continue
		}
		message, err := s.translator.Translate(ctx, raw, account.UUID, folder)
		if err != nil {
			s.log.Warnf("failed to translate UID %d in %s: %v", uid, folder, err)
			continue
		}
		result = append(result, *message)
	}

	return result, nil
}
