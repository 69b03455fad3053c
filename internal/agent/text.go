package agent

import (
	"strings"
	"unicode/utf8"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/domain"
)

// Ellipsis marks text cut to fit the platform limit.
const Ellipsis = "..."

// Truncate returns text unchanged when it fits in limit characters;
// otherwise it keeps the first limit-3 characters and appends Ellipsis so
// the result is exactly limit characters long.
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	if limit <= len(Ellipsis) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(Ellipsis)]) + Ellipsis
}

// MoodPrompt fills the {mood} placeholder of template.
func MoodPrompt(template string, mood domain.Mood) string {
	return strings.ReplaceAll(template, "{mood}", string(mood))
}

// TextPrompt fills the {text} placeholder of template. A template without
// the placeholder gets the text appended on its own line.
func TextPrompt(template, text string) string {
	if template == "" {
		return text
	}
	if !strings.Contains(template, "{text}") {
		return template + "\n\n" + text
	}
	return strings.ReplaceAll(template, "{text}", text)
}

// ReplyText addresses generated at username.
func ReplyText(username, generated string) string {
	return "@" + strings.TrimPrefix(username, "@") + " " + strings.TrimSpace(generated)
}
