package translator

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/nolashq/nolas/dto"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/tracing"
	"github.com/nolashq/nolas/internal/utils"
)

const snippetLength = 100

// attachmentIDPrefix makes attachment ids positional: att_1, att_2, ... in
// MIME walk order.
const attachmentIDPrefix = "att_"

type translatorService struct {
	log logger.Logger
}

func NewTranslator(log logger.Logger) interfaces.Translator {
	return &translatorService{log: log}
}

// Translate converts raw RFC 822 bytes into the canonical message shape.
// Parsing is tolerant: a half-broken message still yields a message with
// whatever fields could be recovered.
func (s *translatorService) Translate(ctx context.Context, raw []byte, grantID, folder string) (*dto.Message, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "translatorService.Translate")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagGrant(span, grantID)
	tracing.TagFolder(span, folder)

	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to parse message")
	}

	messageID := strings.TrimSpace(envelope.GetHeader("Message-Id"))

	body := envelope.HTML
	if body == "" {
		body = envelope.Text
	}

	message := &dto.Message{
		ID:          messageID,
		GrantID:     grantID,
		Object:      "message",
		Subject:     envelope.GetHeader("Subject"),
		Body:        body,
		Snippet:     utils.Truncate(body, snippetLength),
		From:        addressList(envelope, "From"),
		To:          addressList(envelope, "To"),
		Cc:          addressList(envelope, "Cc"),
		Bcc:         addressList(envelope, "Bcc"),
		ReplyTo:     addressList(envelope, "Reply-To"),
		Date:        messageDate(envelope),
		ThreadID:    threadID(envelope, messageID),
		Starred:     false,
		Unread:      true,
		Folders:     []string{folder},
		Attachments: attachmentMetadata(envelope),
	}

	return message, nil
}

// ExtractAttachment re-parses the raw message and returns the content of the
// attachment at the given positional id.
func (s *translatorService) ExtractAttachment(ctx context.Context, raw []byte, attachmentID string) (*dto.AttachmentContent, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "translatorService.ExtractAttachment")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("attachment.id", attachmentID)

	index, err := parseAttachmentID(attachmentID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to parse message")
	}

	attachments := namedAttachments(envelope)
	if index > len(attachments) {
		err := errors.Errorf("attachment %s not found", attachmentID)
		tracing.TraceErr(span, err)
		return nil, err
	}

	part := attachments[index-1]
	return &dto.AttachmentContent{
		Attachment: dto.Attachment{
			ID:          attachmentID,
			Filename:    part.FileName,
			ContentType: part.ContentType,
			Size:        len(part.Content),
		},
		Content: part.Content,
	}, nil
}

// namedAttachments keeps only parts carrying a filename; unnamed inline
// parts are not addressable.
func namedAttachments(envelope *enmime.Envelope) []*enmime.Part {
	var parts []*enmime.Part
	for _, part := range envelope.Attachments {
		if part.FileName == "" {
			continue
		}
		parts = append(parts, part)
	}
	return parts
}

func attachmentMetadata(envelope *enmime.Envelope) []dto.Attachment {
	var attachments []dto.Attachment
	for i, part := range namedAttachments(envelope) {
		attachments = append(attachments, dto.Attachment{
			ID:          fmt.Sprintf("%s%d", attachmentIDPrefix, i+1),
			Filename:    part.FileName,
			ContentType: part.ContentType,
			Size:        len(part.Content),
		})
	}
	return attachments
}

func parseAttachmentID(attachmentID string) (int, error) {
	if !strings.HasPrefix(attachmentID, attachmentIDPrefix) {
		return 0, errors.Errorf("invalid attachment id %q", attachmentID)
	}
	index, err := strconv.Atoi(strings.TrimPrefix(attachmentID, attachmentIDPrefix))
	if err != nil || index < 1 {
		return 0, errors.Errorf("invalid attachment id %q", attachmentID)
	}
	return index, nil
}

func addressList(envelope *enmime.Envelope, key string) []dto.EmailAddress {
	parsed, err := envelope.AddressList(key)
	if err != nil || len(parsed) == 0 {
		return []dto.EmailAddress{}
	}

	addresses := make([]dto.EmailAddress, 0, len(parsed))
	for _, addr := range parsed {
		name := addr.Name
		if name == "" {
			name = addr.Address
		}
		addresses = append(addresses, dto.EmailAddress{
			Name:  name,
			Email: addr.Address,
		})
	}
	return addresses
}

func messageDate(envelope *enmime.Envelope) int64 {
	header := envelope.GetHeader("Date")
	if header != "" {
		if parsed, err := mail.ParseDate(header); err == nil {
			return parsed.Unix()
		}
	}
	return utils.Now().Unix()
}

// threadID is the oldest known ancestor: the first References token, falling
// back to the message's own id for thread roots.
func threadID(envelope *enmime.Envelope, messageID string) string {
	if token := utils.FirstMessageIDToken(envelope.GetHeader("References")); token != "" {
		return token
	}
	return messageID
}
