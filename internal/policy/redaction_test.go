package policy

import (
	"strings"
	"testing"
)

func TestRedactTranscript(t *testing.T) {
	input := "My card is 4242 4242 4242 4242, email me at dot@example.com or call +1 (555) 123-9876."
	out, changed := RedactTranscript(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_CARD]", "[REDACTED_EMAIL]", "[REDACTED_PHONE]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
	if strings.Contains(out, "4242") {
		t.Fatalf("card digits survived redaction: %q", out)
	}
}

func TestRedactTranscriptLeavesPlainSpeech(t *testing.T) {
	input := "Remind me to take my pills at 9 am tomorrow."
	out, changed := RedactTranscript(input)
	if changed {
		t.Fatalf("changed = true for plain speech")
	}
	if out != input {
		t.Fatalf("plain speech altered: %q", out)
	}
}
