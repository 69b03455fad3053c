package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/domain"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{"fits", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"cut", "hello world", 8, "hello..."},
		{"runes not bytes", "ééééé", 4, "é..."},
		{"tiny limit", "hello", 2, "he"},
		{"no limit", "hello", 0, "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.text, tt.limit))
		})
	}
}

func TestPrompts(t *testing.T) {
	assert.Equal(t, "Mood: numb", MoodPrompt("Mood: {mood}", domain.MoodNumb))
	assert.Equal(t, "raw", TextPrompt("{text}", "raw"))
	assert.Equal(t, "Reply kindly to: raw", TextPrompt("Reply kindly to: {text}", "raw"))
	assert.Equal(t, "Be brief.\n\nraw", TextPrompt("Be brief.", "raw"))
	assert.Equal(t, "raw", TextPrompt("", "raw"))
}

func TestReplyText(t *testing.T) {
	assert.Equal(t, "@ann hello", ReplyText("ann", " hello\n"))
	assert.Equal(t, "@ann hello", ReplyText("@ann", "hello"))
}
