package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/nolashq/nolas/config"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/models"
	"github.com/nolashq/nolas/internal/tracing"
	"github.com/nolashq/nolas/internal/utils"
)

const (
	// maxConcurrentPerHost bounds simultaneous connections to one provider
	// host, independent of the rate limiter.
	maxConcurrentPerHost = 10

	// poolIdleLimit caps how many released sessions are kept per stream.
	poolIdleLimit = 2

	dialTimeout = 30 * time.Second
)

type hostState struct {
	limiter   *RateLimiter
	semaphore chan struct{}
}

// ConnectionManager dials, pools, and closes IMAP sessions. Connections to
// the same host share a semaphore and a token bucket so a burst of accounts
// on one provider cannot trip its abuse limits.
type ConnectionManager struct {
	cfg           *config.IMAPConfig
	encryptionKey string
	log           logger.Logger

	newHostState func() *hostState

	mu     sync.Mutex
	hosts  map[string]*hostState
	pool   map[string][]*Session
	active map[*Session]string // session -> host
	closed bool
}

func NewConnectionManager(cfg *config.IMAPConfig, workerCfg *config.WorkerConfig, encryptionKey string, log logger.Logger) *ConnectionManager {
	rate := float64(workerCfg.MaxConnectionsPerProvider - 1)
	if rate < 1 {
		rate = 1
	}
	burst := workerCfg.MaxConnectionsPerProvider
	if burst < 1 {
		burst = 1
	}

	cm := &ConnectionManager{
		cfg:           cfg,
		encryptionKey: encryptionKey,
		log:           log,
		hosts:         make(map[string]*hostState),
		pool:          make(map[string][]*Session),
		active:        make(map[*Session]string),
	}
	cm.newHostState = func() *hostState {
		return &hostState{
			limiter:   NewRateLimiter(rate, burst),
			semaphore: make(chan struct{}, maxConcurrentPerHost),
		}
	}
	return cm
}

func (cm *ConnectionManager) hostState(host string) *hostState {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	state, ok := cm.hosts[host]
	if !ok {
		state = cm.newHostState()
		cm.hosts[host] = state
	}
	return state
}

func poolKey(account *models.Account, folder string) string {
	return account.ID + "|" + folder
}

// Acquire returns a logged-in session with folder selected. A pooled session
// is reused when it still answers NOOP; otherwise a fresh connection is
// dialed under the host's semaphore and rate limit.
func (cm *ConnectionManager) Acquire(ctx context.Context, account *models.Account, folder string) (interfaces.IMAPSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ConnectionManager.Acquire")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)
	tracing.TagFolder(span, folder)

	host := account.IMAPHost()
	if host == "" {
		err := errors.New("account has no imap_host in provider context")
		tracing.TraceErr(span, err)
		return nil, err
	}

	if session := cm.takePooled(account, folder); session != nil {
		if err := session.Noop(); err == nil {
			span.SetTag("pooled", true)
			return session, nil
		} else {
			cm.discard(session)
		}
	}

	state := cm.hostState(host)
	if err := state.limiter.Acquire(ctx, 1); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	select {
	case state.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	session, err := cm.dial(ctx, account, host, folder)
	if err != nil {
		<-state.semaphore
		tracing.TraceErr(span, err)
		return nil, err
	}

	cm.mu.Lock()
	if cm.closed {
		cm.mu.Unlock()
		session.logout()
		<-state.semaphore
		return nil, errors.New("connection manager is closed")
	}
	cm.active[session] = host
	cm.mu.Unlock()

	return session, nil
}

func (cm *ConnectionManager) dial(ctx context.Context, account *models.Account, host, folder string) (*Session, error) {
	serverAddr := fmt.Sprintf("%s:%d", host, account.IMAPPort())

	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: 30 * time.Second,
	}
	tlsConfig := &tls.Config{
		ServerName: host,
	}

	c, err := client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", serverAddr)
	}

	caps, err := c.Capability()
	if err != nil {
		c.Logout()
		return nil, errors.Wrap(err, "failed to get capabilities")
	}
	log.Printf("[%s] Server capabilities: %v", account.Email, caps)

	password, err := utils.DecryptString(account.Credentials, cm.encryptionKey)
	if err != nil {
		c.Logout()
		return nil, errors.Wrap(err, "failed to decrypt account credentials")
	}

	// Tight timeout for login, then the configured operation timeout.
	c.Timeout = 30 * time.Second
	if err := c.Login(account.Email, password); err != nil {
		c.Logout()
		return nil, errors.Wrapf(err, "failed to login as %s", account.Email)
	}
	c.Timeout = time.Duration(cm.cfg.Timeout) * time.Second

	session := &Session{
		client:   c,
		email:    account.Email,
		host:     host,
		lastUsed: time.Now(),
	}

	if folder != "" {
		if err := session.Select(ctx, folder); err != nil {
			session.logout()
			return nil, err
		}
	}

	log.Printf("[%s] Successfully connected and logged in to %s", account.Email, serverAddr)
	return session, nil
}

func (cm *ConnectionManager) takePooled(account *models.Account, folder string) *Session {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	key := poolKey(account, folder)
	sessions := cm.pool[key]
	if len(sessions) == 0 {
		return nil
	}
	session := sessions[len(sessions)-1]
	cm.pool[key] = sessions[:len(sessions)-1]
	return session
}

// Release returns a healthy session to the pool for reuse. Callers must not
// release sessions after an error; Close those instead.
func (cm *ConnectionManager) Release(ctx context.Context, account *models.Account, session interfaces.IMAPSession) {
	s, ok := session.(*Session)
	if !ok || s == nil {
		return
	}

	cm.mu.Lock()
	if cm.closed {
		cm.mu.Unlock()
		cm.Close(ctx, session)
		return
	}
	key := poolKey(account, s.folder)
	if len(cm.pool[key]) >= poolIdleLimit {
		cm.mu.Unlock()
		cm.Close(ctx, session)
		return
	}
	s.lastUsed = time.Now()
	cm.pool[key] = append(cm.pool[key], s)
	cm.mu.Unlock()
}

// Close logs the session out and frees its host slot.
func (cm *ConnectionManager) Close(ctx context.Context, session interfaces.IMAPSession) {
	s, ok := session.(*Session)
	if !ok || s == nil {
		return
	}
	cm.discard(s)
}

func (cm *ConnectionManager) discard(s *Session) {
	cm.mu.Lock()
	host, tracked := cm.active[s]
	delete(cm.active, s)
	state := cm.hosts[host]
	cm.mu.Unlock()

	s.logout()

	if tracked && state != nil {
		select {
		case <-state.semaphore:
		default:
		}
	}
}

// drainSessions marks the manager closed and empties the pool and active
// sets. Pooled sessions stay tracked in active until discarded, so the two
// sets overlap; each session is returned exactly once.
func (cm *ConnectionManager) drainSessions() []*Session {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.closed = true
	seen := make(map[*Session]struct{})
	var all []*Session
	for _, sessions := range cm.pool {
		for _, s := range sessions {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			all = append(all, s)
		}
	}
	cm.pool = make(map[string][]*Session)
	for s := range cm.active {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		all = append(all, s)
	}
	return all
}

// CloseAll closes every pooled and active session. Called last on shutdown.
func (cm *ConnectionManager) CloseAll(ctx context.Context) {
	all := cm.drainSessions()

	var wg sync.WaitGroup
	for _, s := range all {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			cm.discard(s)
		}(s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		cm.log.Warn("timed out closing IMAP sessions")
	case <-ctx.Done():
	}
}
