package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/nolashq/nolas/dto"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/models"
	"github.com/nolashq/nolas/internal/tracing"
	"github.com/nolashq/nolas/internal/utils"
)

// sentFolderCandidates is checked in order when mirroring sent mail.
var sentFolderCandidates = []string{"Sent", "SENT", "Sent Items", "Sent Mail", "Sent Messages"}

// InvalidParameterError marks a request problem the caller can fix; handlers
// map it to a 400.
type InvalidParameterError struct {
	Param  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Param, e.Reason)
}

type sender struct {
	connections   interfaces.IMAPConnectionManager
	reader        interfaces.MessageReader
	emails        interfaces.EmailRepository
	encryptionKey string
	log           logger.Logger
}

func NewSender(
	connections interfaces.IMAPConnectionManager,
	reader interfaces.MessageReader,
	emails interfaces.EmailRepository,
	encryptionKey string,
	log logger.Logger,
) interfaces.EmailSender {
	return &sender{
		connections:   connections,
		reader:        reader,
		emails:        emails,
		encryptionKey: encryptionKey,
		log:           log,
	}
}

// Send composes the message, submits it over SMTPS, mirrors it to the Sent
// folder best-effort, and records the index row.
func (s *sender) Send(ctx context.Context, account *models.Account, request *dto.SendMessageRequest) (*dto.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "sender.Send")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)

	if err := validateRequest(request); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	messageID := utils.GenerateMessageID(account.Email)
	threadID := messageID
	var references []string
	var inReplyTo string

	if request.ReplyToMessageID != "" {
		replied, err := s.reader.GetMessage(ctx, account, request.ReplyToMessageID)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		if replied == nil {
			err := &InvalidParameterError{Param: "reply_to_message_id", Reason: "message not found"}
			tracing.TraceErr(span, err)
			return nil, err
		}

		inReplyTo = utils.FormatMessageID(request.ReplyToMessageID)
		references = append(parseReferences(replied.Raw), inReplyTo)
		threadID = replied.Message.ThreadID
	}

	raw, err := compose(account, request, messageID, inReplyTo, references)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if err := s.submit(ctx, account, recipientAddresses(request), raw); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	sentFolder := s.appendToSent(ctx, account, raw)

	message := canonicalSentMessage(account, request, messageID, threadID, sentFolder)

	err = s.emails.Upsert(ctx, &models.Email{
		AccountID: account.ID,
		MessageID: messageID,
		ThreadID:  threadID,
		Folder:    sentFolder,
	})
	if err != nil {
		s.log.Warnf("failed to index sent message %s: %v", messageID, err)
	}

	return message, nil
}

// VerifyLogin checks SMTP credentials without sending anything.
func (s *sender) VerifyLogin(ctx context.Context, account *models.Account) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "sender.VerifyLogin")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)

	client, err := s.dial(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	defer client.Close()

	return client.Quit()
}

func (s *sender) dial(ctx context.Context, account *models.Account) (*smtp.Client, error) {
	host := account.SMTPHost()
	if host == "" {
		return nil, errors.New("account has no smtp_host in provider context")
	}
	addr := fmt.Sprintf("%s:%d", host, account.SMTPPort())

	password, err := utils.DecryptString(account.Credentials, s.encryptionKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt account credentials")
	}

	dialer := &net.Dialer{Timeout: 30 * time.Second}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", addr)
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "smtp handshake failed")
	}

	auth := smtp.PlainAuth("", account.Email, password, host)
	if err := client.Auth(auth); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "smtp login failed for %s", account.Email)
	}

	return client, nil
}

func (s *sender) submit(ctx context.Context, account *models.Account, recipients []string, raw []byte) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "sender.submit")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	client, err := s.dial(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	defer client.Close()

	if err := client.Mail(account.Email); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "MAIL FROM rejected")
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			tracing.TraceErr(span, err)
			return errors.Wrapf(err, "RCPT TO %s rejected", rcpt)
		}
	}

	writer, err := client.Data()
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "DATA rejected")
	}
	if _, err := writer.Write(raw); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to write message body")
	}
	if err := writer.Close(); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to finish message body")
	}

	return client.Quit()
}

// appendToSent mirrors the sent message into the first Sent folder the
// server has and returns its name, or "" when there is no copy. Failure is
// logged, never fatal: the message is already out.
func (s *sender) appendToSent(ctx context.Context, account *models.Account, raw []byte) string {
	span, ctx := opentracing.StartSpanFromContext(ctx, "sender.appendToSent")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	session, err := s.connections.Acquire(ctx, account, "")
	if err != nil {
		s.log.Warnf("cannot open IMAP session for sent copy: %v", err)
		return ""
	}

	names, err := session.ListFolders(ctx)
	if err != nil {
		s.connections.Close(ctx, session)
		s.log.Warnf("cannot list folders for sent copy: %v", err)
		return ""
	}

	folder := pickSentFolder(names)
	if folder == "" {
		s.connections.Release(ctx, account, session)
		s.log.Warnf("no sent folder found for %s", account.Email)
		return ""
	}

	err = session.Append(ctx, folder, []string{`\Seen`}, normalizeCRLF(raw))
	if err != nil {
		s.connections.Close(ctx, session)
		s.log.Warnf("failed to append to %s: %v", folder, err)
		return ""
	}

	s.connections.Release(ctx, account, session)
	return folder
}

// pickSentFolder returns "" when the server has no recognizable Sent folder.
func pickSentFolder(names []string) string {
	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}
	for _, candidate := range sentFolderCandidates {
		if present[candidate] {
			return candidate
		}
	}
	return ""
}

func validateRequest(request *dto.SendMessageRequest) error {
	if request == nil || len(request.To) == 0 {
		return &InvalidParameterError{Param: "to", Reason: "at least one recipient is required"}
	}

	check := func(param string, addresses []dto.EmailAddress) error {
		for _, addr := range addresses {
			validation := mailvalidate.ValidateEmailSyntax(addr.Email)
			if !validation.IsValid {
				return &InvalidParameterError{Param: param, Reason: fmt.Sprintf("invalid address %q", addr.Email)}
			}
		}
		return nil
	}

	if err := check("to", request.To); err != nil {
		return err
	}
	if err := check("cc", request.Cc); err != nil {
		return err
	}
	if err := check("bcc", request.Bcc); err != nil {
		return err
	}
	return nil
}

func recipientAddresses(request *dto.SendMessageRequest) []string {
	var recipients []string
	for _, group := range [][]dto.EmailAddress{request.To, request.Cc, request.Bcc} {
		for _, addr := range group {
			recipients = append(recipients, addr.Email)
		}
	}
	return recipients
}

// fromAddresses resolves the sender identity for the composed headers: the
// request's override when supplied, the account otherwise.
func fromAddresses(account *models.Account, request *dto.SendMessageRequest) []dto.EmailAddress {
	if len(request.From) > 0 {
		return request.From
	}
	return []dto.EmailAddress{{Name: account.Email, Email: account.Email}}
}

// compose builds the RFC 822 message: multipart/alternative for simple
// sends, or multipart/mixed wrapping the alternative body plus base64
// attachments.
func compose(account *models.Account, request *dto.SendMessageRequest, messageID, inReplyTo string, references []string) ([]byte, error) {
	var buffer bytes.Buffer

	headers := map[string]string{
		"From":         formatAddressList(fromAddresses(account, request)),
		"To":           formatAddressList(request.To),
		"Subject":      request.Subject,
		"Message-ID":   messageID,
		"Date":         time.Now().Format(time.RFC1123Z),
		"MIME-Version": "1.0",
	}
	if len(request.Cc) > 0 {
		headers["Cc"] = formatAddressList(request.Cc)
	}
	if len(request.Bcc) > 0 {
		headers["Bcc"] = formatAddressList(request.Bcc)
	}
	if len(request.ReplyTo) > 0 {
		headers["Reply-To"] = formatAddressList(request.ReplyTo)
	}
	if inReplyTo != "" {
		headers["In-Reply-To"] = inReplyTo
	}
	if len(references) > 0 {
		headers["References"] = strings.Join(references, " ")
	}

	writer := multipart.NewWriter(&buffer)

	if len(request.Attachments) == 0 {
		headers["Content-Type"] = fmt.Sprintf(`multipart/alternative; boundary=%q`, writer.Boundary())
		writeHeaders(headers, &buffer)
		if err := addHTMLPart(writer, request.Body); err != nil {
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, errors.Wrap(err, "failed to finalize message")
		}
		return buffer.Bytes(), nil
	}

	headers["Content-Type"] = fmt.Sprintf(`multipart/mixed; boundary=%q`, writer.Boundary())
	writeHeaders(headers, &buffer)

	if err := addAlternativePart(writer, request.Body); err != nil {
		return nil, err
	}
	for _, attachment := range request.Attachments {
		if err := addAttachment(writer, attachment); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to finalize multipart message")
	}

	return buffer.Bytes(), nil
}

// headerOrder keeps composed messages byte-stable between sends.
var headerOrder = []string{
	"From", "To", "Cc", "Bcc", "Reply-To", "Subject",
	"Message-ID", "In-Reply-To", "References", "Date",
	"MIME-Version", "Content-Type",
}

func writeHeaders(headers map[string]string, buffer *bytes.Buffer) {
	for _, name := range headerOrder {
		if value, ok := headers[name]; ok {
			buffer.WriteString(fmt.Sprintf("%s: %s\r\n", name, value))
		}
	}
	buffer.WriteString("\r\n")
}

// addAlternativePart nests the HTML body in its own multipart/alternative
// container inside a mixed message.
func addAlternativePart(writer *multipart.Writer, body string) error {
	var nested bytes.Buffer
	alternative := multipart.NewWriter(&nested)
	if err := addHTMLPart(alternative, body); err != nil {
		return err
	}
	if err := alternative.Close(); err != nil {
		return errors.Wrap(err, "failed to finalize alternative part")
	}

	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {fmt.Sprintf(`multipart/alternative; boundary=%q`, alternative.Boundary())},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create alternative part")
	}
	if _, err := part.Write(nested.Bytes()); err != nil {
		return errors.Wrap(err, "failed to write alternative part")
	}
	return nil
}

func addHTMLPart(writer *multipart.Writer, content string) error {
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=UTF-8"},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create HTML part")
	}
	_, err = part.Write([]byte(content))
	if err != nil {
		return errors.Wrap(err, "failed to write HTML content")
	}
	return nil
}

func addAttachment(writer *multipart.Writer, attachment dto.SendAttachment) error {
	contentType := attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {fmt.Sprintf("%s; name=%q", contentType, attachment.Filename)},
		"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", attachment.Filename)},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create attachment part")
	}

	encoded := base64.StdEncoding.EncodeToString(attachment.Content)
	for len(encoded) > 0 {
		line := encoded
		if len(line) > 76 {
			line = encoded[:76]
		}
		encoded = encoded[len(line):]
		if _, err := part.Write([]byte(line + "\r\n")); err != nil {
			return errors.Wrap(err, "failed to write attachment content")
		}
	}
	return nil
}

func formatAddressList(addresses []dto.EmailAddress) string {
	formatted := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if addr.Name != "" && addr.Name != addr.Email {
			formatted = append(formatted, (&mail.Address{Name: addr.Name, Address: addr.Email}).String())
		} else {
			formatted = append(formatted, addr.Email)
		}
	}
	return strings.Join(formatted, ", ")
}

// parseReferences pulls the References tokens out of the replied-to message.
func parseReferences(raw []byte) []string {
	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	header := parsed.Header.Get("References")
	var references []string
	for {
		token := utils.FirstMessageIDToken(header)
		if token == "" {
			break
		}
		references = append(references, token)
		header = header[strings.Index(header, token)+len(token):]
	}
	return references
}

func normalizeCRLF(raw []byte) []byte {
	normalized := bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(normalized, []byte("\n"), []byte("\r\n"))
}

func canonicalSentMessage(account *models.Account, request *dto.SendMessageRequest, messageID, threadID, folder string) *dto.Message {
	body := request.Body
	var folders []string
	if folder != "" {
		folders = []string{folder}
	}
	return &dto.Message{
		ID:       messageID,
		GrantID:  account.UUID,
		Object:   "message",
		Subject:  request.Subject,
		Body:     body,
		Snippet:  utils.Truncate(body, 100),
		From:     fromAddresses(account, request),
		To:       request.To,
		Cc:       request.Cc,
		Bcc:      request.Bcc,
		ReplyTo:  request.ReplyTo,
		Date:     utils.Now().Unix(),
		ThreadID: threadID,
		Starred:  false,
		Unread:   false,
		Folders:  folders,
	}
}
