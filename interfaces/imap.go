package interfaces

import (
	"context"
	"time"

	"github.com/nolashq/nolas/internal/models"
)

// IMAPSession is a logged-in IMAP connection with at most one selected
// folder. Implementations are not safe for concurrent use.
type IMAPSession interface {
	SelectedFolder() string
	Select(ctx context.Context, folder string) error
	// SearchAll returns every UID in the selected folder, ascending.
	SearchAll(ctx context.Context) ([]uint32, error)
	// SearchHeader returns UIDs of messages whose header matches value.
	SearchHeader(ctx context.Context, header, value string) ([]uint32, error)
	FetchMessage(ctx context.Context, uid uint32) ([]byte, error)
	FetchMessages(ctx context.Context, uids []uint32) (map[uint32][]byte, error)
	ListFolders(ctx context.Context) ([]string, error)
	Append(ctx context.Context, folder string, flags []string, raw []byte) error
	// Idle blocks until new activity, timeout, or ctx cancellation. Only
	// valid when SupportsIdle reports true.
	SupportsIdle() bool
	Idle(ctx context.Context, timeout time.Duration) error
	Noop() error
}

// IMAPConnectionManager hands out rate-limited sessions. Release returns a
// healthy session for reuse; Close discards it. Error paths must Close.
type IMAPConnectionManager interface {
	Acquire(ctx context.Context, account *models.Account, folder string) (IMAPSession, error)
	Release(ctx context.Context, account *models.Account, session IMAPSession)
	Close(ctx context.Context, session IMAPSession)
	CloseAll(ctx context.Context)
}
