package imap

import "strings"

var reconnectableErrors = []string{
	"timeout",
	"timed out",
	"connection closed",
	"connection reset",
	"broken pipe",
	"use of closed network connection",
	"EOF",
}

// IsReconnectableError reports whether an IMAP failure looks like a dropped
// or stalled connection rather than a protocol or credential problem.
func IsReconnectableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, fragment := range reconnectableErrors {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
