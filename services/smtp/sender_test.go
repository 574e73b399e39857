package smtp

import (
	"bytes"
	"net/mail"
	"testing"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolashq/nolas/dto"
	"github.com/nolashq/nolas/internal/models"
)

func testAccount() *models.Account {
	return &models.Account{
		ID:    "acct_1",
		UUID:  "grant-1",
		Email: "sender@example.com",
	}
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		request *dto.SendMessageRequest
		param   string
	}{
		{
			name:    "nil request",
			request: nil,
			param:   "to",
		},
		{
			name:    "no recipients",
			request: &dto.SendMessageRequest{Subject: "hi"},
			param:   "to",
		},
		{
			name: "malformed to address",
			request: &dto.SendMessageRequest{
				To: []dto.EmailAddress{{Email: "not-an-address"}},
			},
			param: "to",
		},
		{
			name: "malformed cc address",
			request: &dto.SendMessageRequest{
				To: []dto.EmailAddress{{Email: "ok@example.com"}},
				Cc: []dto.EmailAddress{{Email: "broken@"}},
			},
			param: "cc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRequest(tt.request)
			require.Error(t, err)
			var invalid *InvalidParameterError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.param, invalid.Param)
		})
	}

	t.Run("valid request", func(t *testing.T) {
		err := validateRequest(&dto.SendMessageRequest{
			To: []dto.EmailAddress{{Email: "ok@example.com"}},
		})
		assert.NoError(t, err)
	})
}

func TestCompose_ReplyThreading(t *testing.T) {
	request := &dto.SendMessageRequest{
		To:      []dto.EmailAddress{{Email: "rcpt@example.com"}},
		Subject: "Re: hello",
		Body:    "<p>reply</p>",
	}

	raw, err := compose(testAccount(), request, "<new@example.com>", "<a@d>", []string{"<r1@d>", "<r2@d>", "<a@d>"})
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "<new@example.com>", parsed.Header.Get("Message-ID"))
	assert.Equal(t, "<a@d>", parsed.Header.Get("In-Reply-To"))
	assert.Equal(t, "<r1@d> <r2@d> <a@d>", parsed.Header.Get("References"))
	assert.Equal(t, "sender@example.com", parsed.Header.Get("From"))
	assert.Equal(t, "rcpt@example.com", parsed.Header.Get("To"))
}

func TestCompose_AttachmentRoundTrip(t *testing.T) {
	payload := []byte("binary\x00payload that is long enough to wrap a base64 line or two when encoded")
	request := &dto.SendMessageRequest{
		To:      []dto.EmailAddress{{Email: "rcpt@example.com"}},
		Subject: "with attachment",
		Body:    "<p>see attached</p>",
		Attachments: []dto.SendAttachment{
			{Filename: "data.bin", ContentType: "application/octet-stream", Content: payload},
		},
	}

	raw, err := compose(testAccount(), request, "<m@d>", "", nil)
	require.NoError(t, err)

	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "<p>see attached</p>", envelope.HTML)
	require.Len(t, envelope.Attachments, 1)
	assert.Equal(t, "data.bin", envelope.Attachments[0].FileName)
	assert.Equal(t, payload, envelope.Attachments[0].Content)
}

func TestCompose_CcAndReplyToHeaders(t *testing.T) {
	request := &dto.SendMessageRequest{
		To:      []dto.EmailAddress{{Name: "R One", Email: "r1@example.com"}},
		Cc:      []dto.EmailAddress{{Email: "cc@example.com"}},
		ReplyTo: []dto.EmailAddress{{Email: "replies@example.com"}},
		Subject: "headers",
		Body:    "x",
	}

	raw, err := compose(testAccount(), request, "<m@d>", "", nil)
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, `"R One" <r1@example.com>`, parsed.Header.Get("To"))
	assert.Equal(t, "cc@example.com", parsed.Header.Get("Cc"))
	assert.Equal(t, "replies@example.com", parsed.Header.Get("Reply-To"))
}

func TestCompose_SimpleSendIsMultipartAlternative(t *testing.T) {
	request := &dto.SendMessageRequest{
		To:      []dto.EmailAddress{{Email: "rcpt@example.com"}},
		Bcc:     []dto.EmailAddress{{Email: "hidden@example.com"}},
		Subject: "plain",
		Body:    "<p>hello</p>",
	}

	raw, err := compose(testAccount(), request, "<m@d>", "", nil)
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Contains(t, parsed.Header.Get("Content-Type"), "multipart/alternative")
	assert.Equal(t, "hidden@example.com", parsed.Header.Get("Bcc"))

	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "<p>hello</p>", envelope.HTML)
	assert.Empty(t, envelope.Attachments)
}

func TestCompose_FromOverride(t *testing.T) {
	request := &dto.SendMessageRequest{
		From:    []dto.EmailAddress{{Name: "Support", Email: "support@example.com"}},
		To:      []dto.EmailAddress{{Email: "rcpt@example.com"}},
		Subject: "override",
		Body:    "x",
	}

	raw, err := compose(testAccount(), request, "<m@d>", "", nil)
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, `"Support" <support@example.com>`, parsed.Header.Get("From"))
}

func TestWriteHeaders_DeterministicOrder(t *testing.T) {
	headers := map[string]string{
		"Subject":      "s",
		"From":         "a@example.com",
		"Content-Type": "text/html",
		"To":           "b@example.com",
	}

	var first, second bytes.Buffer
	writeHeaders(headers, &first)
	writeHeaders(headers, &second)

	want := "From: a@example.com\r\nTo: b@example.com\r\nSubject: s\r\nContent-Type: text/html\r\n\r\n"
	assert.Equal(t, want, first.String())
	assert.Equal(t, want, second.String())
}

func TestParseReferences(t *testing.T) {
	raw := []byte("From: a@example.com\r\n" +
		"References: <r1@d>\r\n <r2@d>\r\n" +
		"Subject: x\r\n\r\nbody")

	assert.Equal(t, []string{"<r1@d>", "<r2@d>"}, parseReferences(raw))

	noHeader := []byte("From: a@example.com\r\nSubject: x\r\n\r\nbody")
	assert.Empty(t, parseReferences(noHeader))
}

func TestPickSentFolder(t *testing.T) {
	assert.Equal(t, "Sent", pickSentFolder([]string{"INBOX", "Sent", "Trash"}))
	assert.Equal(t, "Sent Items", pickSentFolder([]string{"INBOX", "Sent Items"}))
	// Nothing recognizable: no copy is attempted.
	assert.Equal(t, "", pickSentFolder([]string{"INBOX", "Archive"}))
}

func TestRecipientAddresses(t *testing.T) {
	request := &dto.SendMessageRequest{
		To:  []dto.EmailAddress{{Email: "to@example.com"}},
		Cc:  []dto.EmailAddress{{Email: "cc@example.com"}},
		Bcc: []dto.EmailAddress{{Email: "bcc@example.com"}},
	}
	assert.Equal(t, []string{"to@example.com", "cc@example.com", "bcc@example.com"}, recipientAddresses(request))
}

func TestNormalizeCRLF(t *testing.T) {
	assert.Equal(t, []byte("a\r\nb\r\n"), normalizeCRLF([]byte("a\nb\n")))
	// Already-normalized input stays put instead of doubling.
	assert.Equal(t, []byte("a\r\nb\r\n"), normalizeCRLF([]byte("a\r\nb\r\n")))
}

func TestCanonicalSentMessage(t *testing.T) {
	request := &dto.SendMessageRequest{
		To:      []dto.EmailAddress{{Email: "to@example.com"}},
		Subject: "s",
		Body:    "body text",
	}

	message := canonicalSentMessage(testAccount(), request, "<m@d>", "<t@d>", "Sent")

	assert.Equal(t, "<m@d>", message.ID)
	assert.Equal(t, "grant-1", message.GrantID)
	assert.Equal(t, "<t@d>", message.ThreadID)
	assert.Equal(t, []string{"Sent"}, message.Folders)
	assert.Equal(t, []dto.EmailAddress{{Name: "sender@example.com", Email: "sender@example.com"}}, message.From)
	assert.False(t, message.Unread)

	// No sent copy: the folder list stays empty rather than claiming one.
	uncopied := canonicalSentMessage(testAccount(), request, "<m@d>", "<t@d>", "")
	assert.Empty(t, uncopied.Folders)

	request.From = []dto.EmailAddress{{Name: "Support", Email: "support@example.com"}}
	overridden := canonicalSentMessage(testAccount(), request, "<m@d>", "<t@d>", "Sent")
	assert.Equal(t, request.From, overridden.From)
}
