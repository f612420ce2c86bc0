package logger

import "testing"

func TestRedactQuery(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"", ""},
		{"limit=10&cursor=abc", "limit=10&cursor=abc"},
		{"token=secret", "token=%2A%2A%2A"},
		{"code=abc.def&limit=1", "code=%2A%2A%2A&limit=1"},
		{"state=s&code=c", "code=%2A%2A%2A&state=%2A%2A%2A"},
		{"bad=%zz", "[unparsed]"},
	}

	for _, tt := range tests {
		if got := redactQuery(tt.raw); got != tt.expected {
			t.Errorf("redactQuery(%q) = %q, expected %q", tt.raw, got, tt.expected)
		}
	}
}
