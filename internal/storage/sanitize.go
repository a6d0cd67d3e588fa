package storage

import (
	"strconv"
	"strings"
	"time"
)

const (
	// maxNameRunes caps the part of a stored name taken from the client name,
	// keeping the full stored name well below the usual 255-byte file name limit
	maxNameRunes = 200
	// maxExtensionRunes is the longest extension kept when a name is truncated
	maxExtensionRunes = 16
)

// SanitizeFileName turns an untrusted client file name into a storage name.
//
// Every rune outside [A-Za-z0-9.] is replaced with "_" and the result is prefixed
// with the creation time in epoch milliseconds: "<millis>-<sanitized>".
// Names longer than maxNameRunes are truncated, keeping their extension.
// The result never contains a path separator, and it is never empty.
// Two identical names sanitized within the same millisecond produce the same result.
func SanitizeFileName(original string, now time.Time) string {
	var b strings.Builder
	for _, r := range original {
		if isAllowedRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + truncateName(b.String())
}

func isAllowedRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.'
}

// truncateName shortens an already sanitized (ASCII only) name to maxNameRunes,
// keeping an extension of at most maxExtensionRunes
func truncateName(name string) string {
	if len(name) <= maxNameRunes {
		return name
	}

	ext := ""
	if dot := strings.LastIndexByte(name, '.'); dot > 0 && len(name)-dot <= maxExtensionRunes {
		ext = name[dot:]
	}
	return name[:maxNameRunes-len(ext)] + ext
}
