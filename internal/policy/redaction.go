// Package policy screens transcript text before it is persisted. Call
// logs are long-lived; the live conversation itself is never altered.
package policy

import "regexp"

var (
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
)

// RedactTranscript masks payment card numbers, email addresses and
// phone numbers in one transcript line.
func RedactTranscript(line string) (redacted string, changed bool) {
	out := line

	// Card redaction runs before phone so card numbers are not
	// classified as phone numbers.
	next := cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}
