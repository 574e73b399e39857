package imap

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"

	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/models"
	"github.com/nolashq/nolas/internal/tracing"
)

// maxMonitoredFolders caps how many folders one account can have tailed.
const maxMonitoredFolders = 15

// ignoredFolderWords marks folders that never feed ingestion.
var ignoredFolderWords = []string{"drafts", "junk", "archive", "trash", "spam"}

// defaultFolders is used when folder discovery fails.
var defaultFolders = []string{"INBOX", "Sent"}

type folderService struct {
	connections interfaces.IMAPConnectionManager
	log         logger.Logger
}

func NewFolderService(connections interfaces.IMAPConnectionManager, log logger.Logger) interfaces.FolderService {
	return &folderService{
		connections: connections,
		log:         log,
	}
}

// MonitoredFolders lists the account's folders and filters them down to the
// set worth tailing. Discovery failures fall back to INBOX and Sent so a
// flaky LIST never blocks ingestion entirely.
func (s *folderService) MonitoredFolders(ctx context.Context, account *models.Account) ([]string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderService.MonitoredFolders")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)

	session, err := s.connections.Acquire(ctx, account, "")
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Warnf("folder discovery failed for %s, using defaults: %v", account.Email, err)
		return defaultFolders, nil
	}

	names, err := session.ListFolders(ctx)
	if err != nil {
		s.connections.Close(ctx, session)
		tracing.TraceErr(span, err)
		s.log.Warnf("folder listing failed for %s, using defaults: %v", account.Email, err)
		return defaultFolders, nil
	}
	s.connections.Release(ctx, account, session)

	folders := FilterMonitoredFolders(names)
	if len(folders) == 0 {
		return defaultFolders, nil
	}

	span.SetTag("folder.count", len(folders))
	return folders, nil
}

// FilterMonitoredFolders drops ignorable folders and truncates the list.
func FilterMonitoredFolders(names []string) []string {
	var folders []string
	for _, name := range names {
		if name == "" || isIgnoredFolder(name) {
			continue
		}
		folders = append(folders, name)
		if len(folders) == maxMonitoredFolders {
			break
		}
	}
	return folders
}

func isIgnoredFolder(name string) bool {
	lower := strings.ToLower(name)
	for _, word := range ignoredFolderWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
