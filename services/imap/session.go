package imap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/textproto"
	"sort"
	"sync"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/pkg/errors"
)

// Session wraps a logged-in IMAP connection. At most one folder is selected
// at a time; callers serialize access.
type Session struct {
	client   *client.Client
	email    string
	host     string
	folder   string
	lastUsed time.Time
}

func (s *Session) SelectedFolder() string {
	return s.folder
}

func (s *Session) Select(ctx context.Context, folder string) error {
	if _, err := s.client.Select(folder, false); err != nil {
		return errors.Wrapf(err, "failed to select folder %s", folder)
	}
	s.folder = folder
	return nil
}

// SearchAll returns every UID in the selected folder, ascending.
func (s *Session) SearchAll(ctx context.Context) ([]uint32, error) {
	criteria := goimap.NewSearchCriteria()
	all := new(goimap.SeqSet)
	all.AddRange(1, 0) // 1:*
	criteria.Uid = all

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, errors.Wrap(err, "uid search failed")
	}

	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

func (s *Session) SearchHeader(ctx context.Context, header, value string) ([]uint32, error) {
	criteria := goimap.NewSearchCriteria()
	criteria.Header = textproto.MIMEHeader{}
	criteria.Header.Add(header, value)

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, errors.Wrapf(err, "uid search by %s failed", header)
	}

	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

func (s *Session) FetchMessage(ctx context.Context, uid uint32) ([]byte, error) {
	fetched, err := s.FetchMessages(ctx, []uint32{uid})
	if err != nil {
		return nil, err
	}
	raw, ok := fetched[uid]
	if !ok {
		return nil, fmt.Errorf("message with UID %d not found", uid)
	}
	return raw, nil
}

// FetchMessages downloads full RFC 822 bodies for the given UIDs. Missing
// UIDs (expunged between search and fetch) are silently absent from the map.
func (s *Session) FetchMessages(ctx context.Context, uids []uint32) (map[uint32][]byte, error) {
	out := make(map[uint32][]byte, len(uids))
	if len(uids) == 0 {
		return out, nil
	}

	seqset := new(goimap.SeqSet)
	seqset.AddNum(uids...)

	section := &goimap.BodySectionName{}
	items := []goimap.FetchItem{section.FetchItem(), goimap.FetchUid}

	messages := make(chan *goimap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqset, items, messages)
	}()

	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			log.Printf("[%s][%s] failed to read body of UID %d: %v", s.email, s.folder, msg.Uid, err)
			continue
		}
		out[msg.Uid] = raw
	}

	if err := <-done; err != nil {
		return nil, errors.Wrap(err, "uid fetch failed")
	}

	return out, nil
}

// ListFolders returns selectable folder names as advertised by the server.
func (s *Session) ListFolders(ctx context.Context) ([]string, error) {
	mailboxes := make(chan *goimap.MailboxInfo, 50)
	done := make(chan error, 1)
	go func() {
		done <- s.client.List("", "*", mailboxes)
	}()

	var names []string
	for m := range mailboxes {
		selectable := true
		for _, attr := range m.Attributes {
			if attr == goimap.NoSelectAttr {
				selectable = false
				break
			}
		}
		if selectable && m.Name != "" {
			names = append(names, m.Name)
		}
	}

	if err := <-done; err != nil {
		return nil, errors.Wrap(err, "list folders failed")
	}

	return names, nil
}

func (s *Session) Append(ctx context.Context, folder string, flags []string, raw []byte) error {
	err := s.client.Append(folder, flags, time.Now(), bytes.NewBuffer(raw))
	if err != nil {
		return errors.Wrapf(err, "failed to append to %s", folder)
	}
	return nil
}

func (s *Session) SupportsIdle() bool {
	ok, err := s.client.Support("IDLE")
	return err == nil && ok
}

// Idle blocks until mailbox activity, the timeout, or ctx cancellation.
func (s *Session) Idle(ctx context.Context, timeout time.Duration) error {
	stop := make(chan struct{})
	var once sync.Once
	stopIdle := func() { once.Do(func() { close(stop) }) }

	timer := time.AfterFunc(timeout, stopIdle)
	defer timer.Stop()

	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			stopIdle()
		case <-watchDone:
		}
	}()

	return s.client.Idle(stop, &client.IdleOptions{
		// Refresh well under the RFC 2177 29 minute ceiling.
		LogoutTimeout: 25 * time.Minute,
	})
}

func (s *Session) Noop() error {
	return s.client.Noop()
}

// logout closes the connection, forcing termination if the server does not
// answer LOGOUT within five seconds.
func (s *Session) logout() {
	done := make(chan error, 1)
	go func() {
		done <- s.client.Logout()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Printf("[%s] logout timed out, terminating connection", s.email)
		_ = s.client.Terminate()
	}
}
