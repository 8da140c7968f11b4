package bot

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"newswatch/internal/model"
)

// maxMessageLen keeps chunks under Telegram's 4096-character limit with
// headroom for markup.
const maxMessageLen = 4000

// FormatNotification formats a relevant news item as a notification
// message.
func FormatNotification(item model.NewsItem, task model.Task, post string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "News: %s\n", item.Title)
	if item.Link != "" {
		b.WriteString(item.Link)
		b.WriteString("\n")
	}
	if item.Description != "" {
		b.WriteString("\n")
		b.WriteString(item.Description)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nMarket: %s", task.Title)
	if task.Link != "" {
		fmt.Fprintf(&b, "\n%s", task.Link)
	}
	if post != "" {
		fmt.Fprintf(&b, "\n\nPost suggestion: %s", post)
	}
	return b.String()
}

// FormatSourceList formats the configured sources for display.
func FormatSourceList(sources []model.Source) string {
	if len(sources) == 0 {
		return "No sources configured. Use /addsource <name> <url> to add one."
	}
	var b strings.Builder
	b.WriteString("Sources:\n")
	for _, src := range sources {
		fmt.Fprintf(&b, "\n%s [%s]\n   %s\n", src.Name, src.Kind, src.URL)
	}
	return b.String()
}

// chunkMessage splits text into pieces short enough to send, breaking on
// line boundaries where possible.
func chunkMessage(text string) []string {
	if len(text) <= maxMessageLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > maxMessageLen {
		cut := strings.LastIndex(text[:maxMessageLen], "\n")
		if cut <= 0 {
			// Hard cut: back up so a multi-byte rune is never split.
			cut = maxMessageLen
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxMessageLen
			}
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
