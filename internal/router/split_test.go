package router

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{name: "fits", text: "short", limit: 10, want: []string{"short"}},
		{name: "hard cut", text: "abcdefghijklm", limit: 10, want: []string{"abcdefghij", "klm"}},
		{name: "newline boundaries", text: "ab\ncdef\ngh", limit: 6, want: []string{"ab", "cdef", "gh"}},
		{name: "counts runes", text: strings.Repeat("й", 5), limit: 2, want: []string{"йй", "йй", "й"}},
		{name: "trailing newlines dropped", text: "abcd\n\n\n\n", limit: 5, want: []string{"abcd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitMessage(tt.text, tt.limit))
		})
	}
}

func TestSplitMessageTelegramLimit(t *testing.T) {
	parts := splitMessage(strings.Repeat("слово ", 2000), maxMessageRunes)

	assert.Len(t, parts, 3)
	for _, p := range parts {
		assert.LessOrEqual(t, utf8.RuneCountInString(p), maxMessageRunes)
	}
	assert.Equal(t, strings.Repeat("слово ", 2000), strings.Join(parts, ""))
}
