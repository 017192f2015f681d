// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package events

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// Free text captured from the page (element text, form values, chat
// messages) passes through SanitizePII before it is stored or forwarded.
var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// Phone numbers with optional country code and common separators,
	// at least 10 digits total.
	phonePattern = regexp.MustCompile(`\+?\d[\d\s\-().]{8,}\d`)
)

// Redaction placeholders.
const (
	redactedEmail = "[email]"
	redactedPhone = "[phone]"
)

// SanitizePII replaces email addresses and phone numbers with
// placeholders. The output never contains the original substrings.
func SanitizePII(text string) string {
	out := emailPattern.ReplaceAllString(text, redactedEmail)
	out = phonePattern.ReplaceAllString(out, redactedPhone)
	return out
}

// Digest returns the hex SHA-256 of the input, used to derive stable
// pseudonymous keys for telemetry labels.
func Digest(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
