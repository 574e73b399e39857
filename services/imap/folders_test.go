package imap

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterMonitoredFolders(t *testing.T) {
	t.Run("drops ignorable folders", func(t *testing.T) {
		names := []string{"INBOX", "Sent", "Drafts", "Junk", "Archive", "Trash", "Spam", "Work"}

		folders := FilterMonitoredFolders(names)

		assert.Equal(t, []string{"INBOX", "Sent", "Work"}, folders)
	})

	t.Run("matching is case insensitive and substring based", func(t *testing.T) {
		names := []string{"INBOX", "[Gmail]/Trash", "JUNK MAIL", "Archived Items"}

		folders := FilterMonitoredFolders(names)

		assert.Equal(t, []string{"INBOX"}, folders)
	})

	t.Run("caps the folder count", func(t *testing.T) {
		var names []string
		for i := 0; i < 30; i++ {
			names = append(names, fmt.Sprintf("Folder-%02d", i))
		}

		folders := FilterMonitoredFolders(names)

		assert.Len(t, folders, maxMonitoredFolders)
		assert.Equal(t, "Folder-00", folders[0])
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		assert.Empty(t, FilterMonitoredFolders(nil))
	})
}

func TestIsReconnectableError(t *testing.T) {
	assert.True(t, IsReconnectableError(fmt.Errorf("read tcp: i/o timeout")))
	assert.True(t, IsReconnectableError(fmt.Errorf("write: broken pipe")))
	assert.True(t, IsReconnectableError(fmt.Errorf("unexpected EOF")))
	assert.False(t, IsReconnectableError(fmt.Errorf("NO [AUTHENTICATIONFAILED] invalid credentials")))
	assert.False(t, IsReconnectableError(nil))
}
