// Package transcript turns a session's raw message sequence into its
// display form: a synthesized title and rendered (label, content) pairs.
// Everything here is pure and deterministic.
package transcript

import (
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/estilobot/backend/internal/model/chat"
)

// Display labels resolved from the message author. Unknown authors fall
// back to the bot label rather than failing.
const (
	UserLabel = "Você"
	BotLabel  = "EstiloBot"
)

// TitleBudget caps synthesized titles, in runes.
const TitleBudget = 40

// Entry is one rendered transcript line.
type Entry struct {
	DisplayName string `json:"displayName"`
	Content     string `json:"content"`
}

// Title derives a short session title from the first user message,
// truncated to TitleBudget at a word boundary. When no user message
// exists the default placeholder is returned, so callers can apply the
// result unconditionally while the title is still unset.
func Title(messages []chat.Message) string {
	for _, msg := range messages {
		if msg.Author != chat.AuthorUser {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		return truncate(content, TitleBudget)
	}
	return chat.DefaultTitle
}

// Render yields (displayName, content) pairs in message order. The
// sequence is lazy and restartable: ranging over it again replays the
// transcript from the start.
func Render(messages []chat.Message) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, msg := range messages {
			if !yield(label(msg.Author), msg.Content) {
				return
			}
		}
	}
}

// Entries materializes Render for JSON responses. An empty message
// sequence yields an empty, non-nil slice.
func Entries(messages []chat.Message) []Entry {
	entries := make([]Entry, 0, len(messages))
	for name, content := range Render(messages) {
		entries = append(entries, Entry{DisplayName: name, Content: content})
	}
	return entries
}

func label(author string) string {
	if author == chat.AuthorUser {
		return UserLabel
	}
	return BotLabel
}

// truncate cuts text to at most budget runes, dropping a trailing partial
// word when a space exists inside the budget.
func truncate(text string, budget int) string {
	if utf8.RuneCountInString(text) <= budget {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:budget])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}
