package policy

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	apperrors "paidping-backend/internal/common/errors"
	"paidping-backend/internal/features/message/models"
)

var (
	urlPattern = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)

	// Disallowed words are matched on word boundaries against the
	// lowercased canonical body, so "scunthorpe" stays clean.
	disallowed = []string{
		"fuck", "shit", "bitch", "cunt", "asshole", "nigger", "faggot",
	}
	disallowedPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(disallowed, "|") + `)\b`)
)

// Check normalizes a raw message body and runs every content rule
// against the canonical form. Each rule short-circuits. On success the
// normalized body is returned; every insert goes through it so the
// store only ever holds canonical text.
func Check(rawBody string) (string, error) {
	body := strings.TrimSpace(norm.NFC.String(rawBody))
	if body == "" {
		return "", apperrors.New(apperrors.ErrCodeEmptyMessage, "message body is empty")
	}
	if n := utf8.RuneCountInString(body); n > models.MaxBodyLen {
		return "", apperrors.Newf(apperrors.ErrCodeMessageTooLong,
			"message body is %d characters, limit is %d", n, models.MaxBodyLen)
	}
	if links := urlPattern.FindAllString(body, -1); len(links) > models.MaxLinks {
		return "", apperrors.Newf(apperrors.ErrCodeTooManyLinks,
			"message contains %d links, limit is %d", len(links), models.MaxLinks)
	}
	if disallowedPattern.MatchString(body) {
		return "", apperrors.New(apperrors.ErrCodeProfanityDetected, "message contains disallowed language")
	}
	return body, nil
}
