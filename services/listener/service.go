package listener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nolashq/nolas/config"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/enum"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/tracing"
)

const drainTimeout = 30 * time.Second

// Service loads the active accounts and fans them out across workers
// according to IMAP_LISTENER_MODE.
type Service struct {
	cfg      *config.Config
	accounts interfaces.AccountRepository
	apps     interfaces.AppRepository
	folders  interfaces.FolderService
	deps     SupervisorDeps
	log      logger.Logger
}

func NewService(
	cfg *config.Config,
	accounts interfaces.AccountRepository,
	apps interfaces.AppRepository,
	folders interfaces.FolderService,
	deps SupervisorDeps,
	log logger.Logger,
) *Service {
	return &Service{
		cfg:      cfg,
		accounts: accounts,
		apps:     apps,
		folders:  folders,
		deps:     deps,
		log:      log,
	}
}

// Run blocks until ctx is cancelled, then waits up to 30 seconds for the
// supervisors to drain before giving up on them.
func (s *Service) Run(ctx context.Context) error {
	accounts, err := s.accounts.GetAllActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active accounts: %w", err)
	}

	workers := 1
	if s.cfg.IMAP.ListenerMode == enum.ListenerModeCluster {
		workers = s.cfg.Worker.Num
		if workers < 1 {
			workers = 1
		}
	}

	shards := ShardAccounts(accounts, workers)
	s.log.Infof("starting listener: %d accounts across %d workers (%s mode)", len(accounts), len(shards), s.cfg.IMAP.ListenerMode)

	var wg sync.WaitGroup
	for i, shard := range shards {
		worker := NewAccountWorker(i, shard, s.cfg.IMAP, s.apps, s.folders, s.deps, s.log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer tracing.RecoverAndLogToJaeger(s.log)
			worker.Run(ctx)
		}()
	}

	<-ctx.Done()
	s.log.Info("listener shutting down, draining supervisors")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("listener drained cleanly")
	case <-time.After(drainTimeout):
		s.log.Warnf("listener drain exceeded %s, abandoning remaining supervisors", drainTimeout)
	}

	return nil
}
