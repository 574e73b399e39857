package translator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolashq/nolas/internal/logger"
)

func testLogger() logger.Logger {
	l := logger.NewAppLogger(&logger.Config{DevMode: true})
	l.InitLogger()
	return l
}

const simpleMessage = "Message-ID: <root@example.com>\r\n" +
	"From: Ada Lovelace <ada@example.com>\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Hello\r\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 -0700\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"plain body here\r\n"

func TestTranslate_PlainText(t *testing.T) {
	svc := NewTranslator(testLogger())

	msg, err := svc.Translate(context.Background(), []byte(simpleMessage), "grant-1", "INBOX")
	require.NoError(t, err)

	assert.Equal(t, "<root@example.com>", msg.ID)
	assert.Equal(t, "grant-1", msg.GrantID)
	assert.Equal(t, "message", msg.Object)
	assert.Equal(t, "Hello", msg.Subject)
	assert.Contains(t, msg.Body, "plain body here")
	assert.Equal(t, []string{"INBOX"}, msg.Folders)
	assert.True(t, msg.Unread)
	assert.False(t, msg.Starred)
	assert.Equal(t, int64(1136239445), msg.Date)

	require.Len(t, msg.From, 1)
	assert.Equal(t, "Ada Lovelace", msg.From[0].Name)
	assert.Equal(t, "ada@example.com", msg.From[0].Email)

	// Display name falls back to the address.
	require.Len(t, msg.To, 1)
	assert.Equal(t, "bob@example.com", msg.To[0].Name)
}

func TestTranslate_ThreadID(t *testing.T) {
	svc := NewTranslator(testLogger())

	t.Run("root message threads on its own id", func(t *testing.T) {
		msg, err := svc.Translate(context.Background(), []byte(simpleMessage), "g", "INBOX")
		require.NoError(t, err)
		assert.Equal(t, "<root@example.com>", msg.ThreadID)
	})

	t.Run("reply threads on the first reference", func(t *testing.T) {
		reply := "Message-ID: <reply@example.com>\r\n" +
			"References: <root@example.com> <mid@example.com>\r\n" +
			"From: bob@example.com\r\n" +
			"Subject: Re: Hello\r\n" +
			"\r\n" +
			"reply body\r\n"

		msg, err := svc.Translate(context.Background(), []byte(reply), "g", "INBOX")
		require.NoError(t, err)
		assert.Equal(t, "<root@example.com>", msg.ThreadID)
	})
}

func TestTranslate_PrefersHTMLBody(t *testing.T) {
	svc := NewTranslator(testLogger())

	multi := "Message-ID: <m@example.com>\r\n" +
		"From: a@example.com\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
		"\r\n" +
		"--b1\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"plain version\r\n" +
		"--b1\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>html version</p>\r\n" +
		"--b1--\r\n"

	msg, err := svc.Translate(context.Background(), []byte(multi), "g", "INBOX")
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "html version")
	assert.NotContains(t, msg.Body, "plain version")
}

func TestTranslate_Snippet(t *testing.T) {
	svc := NewTranslator(testLogger())

	long := "Message-ID: <m@example.com>\r\n" +
		"From: a@example.com\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		strings.Repeat("x", 300) + "\r\n"

	msg, err := svc.Translate(context.Background(), []byte(long), "g", "INBOX")
	require.NoError(t, err)
	assert.Len(t, msg.Snippet, snippetLength+3)
	assert.True(t, strings.HasSuffix(msg.Snippet, "..."))
}

const attachmentMessage = "Message-ID: <att@example.com>\r\n" +
	"From: a@example.com\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"b2\"\r\n" +
	"\r\n" +
	"--b2\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"see attached\r\n" +
	"--b2\r\n" +
	"Content-Type: application/pdf; name=\"report.pdf\"\r\n" +
	"Content-Disposition: attachment; filename=\"report.pdf\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"aGVsbG8gcGRm\r\n" +
	"--b2\r\n" +
	"Content-Type: text/csv; name=\"data.csv\"\r\n" +
	"Content-Disposition: attachment; filename=\"data.csv\"\r\n" +
	"\r\n" +
	"a,b,c\r\n" +
	"--b2--\r\n"

func TestTranslate_Attachments(t *testing.T) {
	svc := NewTranslator(testLogger())

	msg, err := svc.Translate(context.Background(), []byte(attachmentMessage), "g", "INBOX")
	require.NoError(t, err)

	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, "att_1", msg.Attachments[0].ID)
	assert.Equal(t, "report.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
	assert.Equal(t, "att_2", msg.Attachments[1].ID)
	assert.Equal(t, "data.csv", msg.Attachments[1].Filename)
}

func TestExtractAttachment(t *testing.T) {
	svc := NewTranslator(testLogger())

	t.Run("round trips ids assigned by Translate", func(t *testing.T) {
		content, err := svc.ExtractAttachment(context.Background(), []byte(attachmentMessage), "att_1")
		require.NoError(t, err)
		assert.Equal(t, "report.pdf", content.Filename)
		assert.Equal(t, []byte("hello pdf"), content.Content)
	})

	t.Run("unknown index", func(t *testing.T) {
		_, err := svc.ExtractAttachment(context.Background(), []byte(attachmentMessage), "att_9")
		assert.Error(t, err)
	})

	t.Run("malformed id", func(t *testing.T) {
		_, err := svc.ExtractAttachment(context.Background(), []byte(attachmentMessage), "bogus")
		assert.Error(t, err)

		_, err = svc.ExtractAttachment(context.Background(), []byte(attachmentMessage), "att_0")
		assert.Error(t, err)
	})
}
