package listener

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nolashq/nolas/config"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/models"
	"github.com/nolashq/nolas/internal/tracing"
)

const heartbeatInterval = 30 * time.Second

// AccountWorker owns a fixed slice of accounts and runs one supervisor per
// (account, folder). Workers share the connection manager but nothing else.
type AccountWorker struct {
	id       int
	accounts []*models.Account
	cfg      *config.IMAPConfig

	apps    interfaces.AppRepository
	folders interfaces.FolderService
	deps    SupervisorDeps
	log     logger.Logger

	running int64
}

func NewAccountWorker(
	id int,
	accounts []*models.Account,
	cfg *config.IMAPConfig,
	apps interfaces.AppRepository,
	folders interfaces.FolderService,
	deps SupervisorDeps,
	log logger.Logger,
) *AccountWorker {
	return &AccountWorker{
		id:       id,
		accounts: accounts,
		cfg:      cfg,
		apps:     apps,
		folders:  folders,
		deps:     deps,
		log:      log,
	}
}

// Run blocks until every supervisor has exited.
func (w *AccountWorker) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for _, account := range w.accounts {
		app, err := w.apps.GetByID(ctx, account.AppID)
		if err != nil {
			w.log.Errorf("worker %d: failed to load app for account %s: %v", w.id, account.Email, err)
			continue
		}
		if app == nil {
			w.log.Warnf("worker %d: account %s references missing app %s, skipping", w.id, account.Email, account.AppID)
			continue
		}

		folders, err := w.folders.MonitoredFolders(ctx, account)
		if err != nil {
			w.log.Errorf("worker %d: failed to resolve folders for %s: %v", w.id, account.Email, err)
			continue
		}

		for _, folder := range folders {
			supervisor := NewSupervisor(app, account, folder, w.cfg, w.deps)
			wg.Add(1)
			go func(email, folder string) {
				defer wg.Done()
				defer tracing.RecoverAndLogToJaeger(w.log)
				atomic.AddInt64(&w.running, 1)
				defer atomic.AddInt64(&w.running, -1)
				supervisor.Run(ctx)
				w.log.Infof("worker %d: supervisor for %s/%s exited", w.id, email, folder)
			}(account.Email, folder)
		}
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	go w.heartbeat(heartbeatCtx)

	wg.Wait()
	stopHeartbeat()
}

func (w *AccountWorker) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.log.Infof("worker %d: %d accounts, %d supervisors running", w.id, len(w.accounts), atomic.LoadInt64(&w.running))
		}
	}
}
