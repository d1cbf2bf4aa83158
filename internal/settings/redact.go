// ABOUTME: Redacted views of secret setting fields for diagnostic output
// ABOUTME: Exposes presence, length and a short prefix, never the whole secret

package settings

import "unicode/utf8"

// PreviewLength is how many leading characters of a secret a preview shows.
const PreviewLength = 10

// Redacted describes a secret without revealing it.
type Redacted struct {
	Present bool
	Length  int
	Preview string
}

// Redact builds the redacted view of secret. Secrets no longer than
// PreviewLength are fully masked.
func Redact(secret string) Redacted {
	if secret == "" {
		return Redacted{}
	}

	n := utf8.RuneCountInString(secret)
	r := Redacted{Present: true, Length: n, Preview: "..."}
	if n > PreviewLength {
		r.Preview = string([]rune(secret)[:PreviewLength]) + "..."
	}
	return r
}
