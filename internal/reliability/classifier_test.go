package reliability

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsConnectionFault(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("live: session not connected"), true},
		{errors.New("live: connection failed: dial: refused"), true},
		{errors.New("write: broken pipe"), true},
		{errors.New("websocket: close 1006 (abnormal closure)"), true},
		{errors.New("read tcp: use of closed network connection"), true},
		{fmt.Errorf("wrapped: %w", errors.New("unexpected EOF")), true},
		{errors.New("unknown reminder action \"explode\""), false},
		{errors.New("store: not found"), false},
	}
	for _, tc := range cases {
		if got := IsConnectionFault(tc.err); got != tc.want {
			t.Fatalf("IsConnectionFault(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestExponentialBackoffCap(t *testing.T) {
	base := 100 * time.Millisecond
	capDur := 700 * time.Millisecond
	if got := ExponentialBackoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(10, base, capDur); got != capDur {
		t.Fatalf("attempt 10 = %v, want %v", got, capDur)
	}
}
