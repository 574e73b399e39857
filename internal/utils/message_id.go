package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateMessageID creates an RFC 5322 Message-ID for outbound mail, using
// the sender's domain when available.
func GenerateMessageID(senderEmail string) string {
	domain := "localhost"
	if at := strings.LastIndex(senderEmail, "@"); at >= 0 && at < len(senderEmail)-1 {
		domain = senderEmail[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// FormatMessageID ensures a message id carries angle brackets.
func FormatMessageID(messageID string) string {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return messageID
	}
	if !strings.HasPrefix(messageID, "<") {
		messageID = "<" + messageID
	}
	if !strings.HasSuffix(messageID, ">") {
		messageID = messageID + ">"
	}
	return messageID
}

// NormalizeMessageID strips angle brackets and whitespace.
func NormalizeMessageID(messageID string) string {
	messageID = strings.TrimSpace(messageID)
	messageID = strings.TrimPrefix(messageID, "<")
	messageID = strings.TrimSuffix(messageID, ">")
	return messageID
}

// FirstMessageIDToken returns the first <...> token of a References header.
func FirstMessageIDToken(header string) string {
	start := strings.Index(header, "<")
	if start < 0 {
		return ""
	}
	end := strings.Index(header[start:], ">")
	if end < 0 {
		return ""
	}
	return header[start : start+end+1]
}
