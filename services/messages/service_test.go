package messages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolashq/nolas/dto"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/models"
	"github.com/nolashq/nolas/services/storage"
)

type fakeSession struct {
	selected   string
	uids       map[string][]uint32
	messages   map[string]map[uint32][]byte
	headerHits map[string][]uint32
	fetchCalls int
}

func (s *fakeSession) SelectedFolder() string { return s.selected }

func (s *fakeSession) Select(ctx context.Context, folder string) error {
	s.selected = folder
	return nil
}

func (s *fakeSession) SearchAll(ctx context.Context) ([]uint32, error) {
	return s.uids[s.selected], nil
}

func (s *fakeSession) SearchHeader(ctx context.Context, header, value string) ([]uint32, error) {
	return s.headerHits[s.selected], nil
}

func (s *fakeSession) FetchMessage(ctx context.Context, uid uint32) ([]byte, error) {
	s.fetchCalls++
	raw, ok := s.messages[s.selected][uid]
	if !ok {
		return nil, errors.New("no such message")
	}
	return raw, nil
}

func (s *fakeSession) FetchMessages(ctx context.Context, uids []uint32) (map[uint32][]byte, error) {
	out := make(map[uint32][]byte)
	for _, uid := range uids {
		if raw, ok := s.messages[s.selected][uid]; ok {
			out[uid] = raw
		}
	}
	return out, nil
}

func (s *fakeSession) ListFolders(ctx context.Context) ([]string, error) { return nil, nil }

func (s *fakeSession) Append(ctx context.Context, folder string, flags []string, raw []byte) error {
	return nil
}

func (s *fakeSession) SupportsIdle() bool                                  { return false }
func (s *fakeSession) Idle(ctx context.Context, timeout time.Duration) error { return nil }
func (s *fakeSession) Noop() error                                         { return nil }

type fakeManager struct {
	session  *fakeSession
	released int
	closed   int
}

func (m *fakeManager) Acquire(ctx context.Context, account *models.Account, folder string) (interfaces.IMAPSession, error) {
	if folder != "" {
		m.session.selected = folder
	}
	return m.session, nil
}

func (m *fakeManager) Release(ctx context.Context, account *models.Account, session interfaces.IMAPSession) {
	m.released++
}

func (m *fakeManager) Close(ctx context.Context, session interfaces.IMAPSession) { m.closed++ }
func (m *fakeManager) CloseAll(ctx context.Context)                              {}

// fakeTranslator treats the raw bytes as the Message-ID.
type fakeTranslator struct{}

func (t *fakeTranslator) Translate(ctx context.Context, raw []byte, grantID, folder string) (*dto.Message, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty message")
	}
	return &dto.Message{ID: string(raw), GrantID: grantID, Object: "message", Folders: []string{folder}}, nil
}

func (t *fakeTranslator) ExtractAttachment(ctx context.Context, raw []byte, attachmentID string) (*dto.AttachmentContent, error) {
	return nil, errors.New("not implemented")
}

type fakeEmailRepo struct {
	hint    *models.Email
	upserts []*models.Email
}

func (r *fakeEmailRepo) GetByMessageID(ctx context.Context, accountID, messageID string) (*models.Email, error) {
	return r.hint, nil
}

func (r *fakeEmailRepo) GetByUIDOrMessageID(ctx context.Context, accountID, folder string, uid uint32, messageID string) (*models.Email, error) {
	for _, row := range r.upserts {
		if row.MessageID == messageID || (row.Folder == folder && row.UID == uid) {
			return row, nil
		}
	}
	return nil, nil
}

func (r *fakeEmailRepo) Upsert(ctx context.Context, email *models.Email) error {
	r.upserts = append(r.upserts, email)
	return nil
}

type fakeFolders struct {
	folders []string
}

func (f *fakeFolders) MonitoredFolders(ctx context.Context, account *models.Account) ([]string, error) {
	return f.folders, nil
}

type fakeArchive struct {
	objects   map[string][]byte
	downloads []string
}

func (a *fakeArchive) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	return nil
}

func (a *fakeArchive) Download(ctx context.Context, key string) ([]byte, error) {
	a.downloads = append(a.downloads, key)
	raw, ok := a.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return raw, nil
}

func (a *fakeArchive) Delete(ctx context.Context, key string) error { return nil }

type readerFixture struct {
	session *fakeSession
	manager *fakeManager
	emails  *fakeEmailRepo
	folders *fakeFolders
	archive *fakeArchive
	account *models.Account
}

func newReaderFixture(t *testing.T, withArchive bool) (*readerFixture, interfaces.MessageReader) {
	t.Helper()

	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()

	f := &readerFixture{
		session: &fakeSession{
			uids:       make(map[string][]uint32),
			messages:   map[string]map[uint32][]byte{"INBOX": {}},
			headerHits: make(map[string][]uint32),
		},
		emails:  &fakeEmailRepo{},
		folders: &fakeFolders{folders: []string{"INBOX"}},
		account: &models.Account{ID: "acct_1", UUID: "grant-1", Email: "user@example.com"},
	}
	f.manager = &fakeManager{session: f.session}

	var archive interfaces.StorageService
	if withArchive {
		f.archive = &fakeArchive{objects: make(map[string][]byte)}
		archive = f.archive
	}

	reader := NewMessageService(f.manager, f.folders, &fakeTranslator{}, f.emails, archive, appLogger)
	return f, reader
}

func TestGetMessage_HintHit(t *testing.T) {
	f, reader := newReaderFixture(t, false)
	f.emails.hint = &models.Email{AccountID: "acct_1", Folder: "INBOX", UID: 7}
	f.session.messages["INBOX"][7] = []byte("<m1@example.com>")

	result, err := reader.GetMessage(context.Background(), f.account, "m1@example.com")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "INBOX", result.Folder)
	assert.Equal(t, uint32(7), result.UID)
	assert.Equal(t, "<m1@example.com>", result.Message.ID)
	assert.Equal(t, 1, f.manager.released)
	assert.Zero(t, f.manager.closed)
}

func TestGetMessage_StaleHintFallsBackToSearch(t *testing.T) {
	f, reader := newReaderFixture(t, false)
	f.folders.folders = []string{"INBOX", "Archive"}
	// The hint points at a UID that now holds a different message; the real
	// one was moved to Archive.
	f.emails.hint = &models.Email{AccountID: "acct_1", Folder: "INBOX", UID: 7}
	f.session.messages["INBOX"][7] = []byte("<other@example.com>")
	f.session.messages["Archive"] = map[uint32][]byte{9: []byte("<m1@example.com>")}
	f.session.headerHits["Archive"] = []uint32{9}

	result, err := reader.GetMessage(context.Background(), f.account, "m1@example.com")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "Archive", result.Folder)
	assert.Equal(t, uint32(9), result.UID)

	// The fresh location is cached for the next read.
	require.Len(t, f.emails.upserts, 1)
	assert.Equal(t, uint32(9), f.emails.upserts[0].UID)
	assert.Equal(t, "Archive", f.emails.upserts[0].Folder)
}

func TestGetMessage_SearchSkipsHintFolderAndTakesFirstUID(t *testing.T) {
	f, reader := newReaderFixture(t, false)
	f.folders.folders = []string{"INBOX", "Archive"}
	f.emails.hint = &models.Email{AccountID: "acct_1", Folder: "INBOX", UID: 7}
	f.session.messages["INBOX"][7] = []byte("<other@example.com>")
	// A hit in the hint folder must be ignored; the search already tried it.
	f.session.headerHits["INBOX"] = []uint32{7}
	f.session.messages["Archive"] = map[uint32][]byte{
		3: []byte("<m1@example.com>"),
		8: []byte("<m1@example.com>"),
	}
	f.session.headerHits["Archive"] = []uint32{3, 8}

	result, err := reader.GetMessage(context.Background(), f.account, "m1@example.com")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "Archive", result.Folder)
	assert.Equal(t, uint32(3), result.UID, "the lowest matching UID wins")
}

func TestGetMessage_ArchiveReadThrough(t *testing.T) {
	f, reader := newReaderFixture(t, true)
	f.emails.hint = &models.Email{AccountID: "acct_1", Folder: "INBOX", UID: 7}
	key := storage.RawMessageKey(f.account, "INBOX", 7)
	f.archive.objects[key] = []byte("<m1@example.com>")

	result, err := reader.GetMessage(context.Background(), f.account, "m1@example.com")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, uint32(7), result.UID)
	assert.Equal(t, []string{key}, f.archive.downloads)
	assert.Zero(t, f.session.fetchCalls, "archived reads must not hit IMAP")
}

func TestGetMessage_NotFound(t *testing.T) {
	f, reader := newReaderFixture(t, false)
	f.folders.folders = []string{"INBOX", "Archive"}
	f.session.messages["Archive"] = map[uint32][]byte{}

	result, err := reader.GetMessage(context.Background(), f.account, "missing@example.com")

	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 1, f.manager.released)
}

func TestListMessages_NewestFirstPagination(t *testing.T) {
	f, reader := newReaderFixture(t, false)
	f.session.uids["INBOX"] = []uint32{1, 2, 3, 4, 5}
	for _, uid := range []uint32{1, 2, 3, 4, 5} {
		f.session.messages["INBOX"][uid] = []byte(uidMessageID(uid))
	}

	page, err := reader.ListMessages(context.Background(), f.account, "INBOX", 2, 1)

	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uidMessageID(4), page[0].ID)
	assert.Equal(t, uidMessageID(3), page[1].ID)
}

func uidMessageID(uid uint32) string {
	return "<uid-" + string(rune('0'+uid)) + "@example.com>"
}
