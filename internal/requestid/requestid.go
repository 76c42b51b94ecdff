// Package requestid derives deterministic identifiers for generation
// requests. The same prompt, style and aspect ratio always map to the same
// ID, which makes the IDs usable as cache keys and audit references.
package requestid

import (
	"crypto/md5" // #nosec G501 - not used for security, only for stable cache keys
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Letters and digits from any script stay; prompts are frequently CJK.
	unsafeRe = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:\-()'"]+`)
)

// FromRequest returns a 12-character hex ID derived from the request fields.
func FromRequest(prompt, style, aspectRatio string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%s_%s", prompt, style, aspectRatio))) // #nosec G401
	return hex.EncodeToString(sum[:])[:12]
}

// SanitizePrompt collapses runs of whitespace and strips characters outside
// word characters and basic punctuation.
func SanitizePrompt(prompt string) string {
	if prompt == "" {
		return ""
	}
	cleaned := whitespaceRe.ReplaceAllString(strings.TrimSpace(prompt), " ")
	return unsafeRe.ReplaceAllString(cleaned, "")
}
