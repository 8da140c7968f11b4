package bot

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	readability "github.com/go-shiori/go-readability"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// actionKind enumerates the closed set of reply actions a notification
// message offers.
type actionKind string

const (
	actionIrrelevant actionKind = "irr"
	actionTranslate  actionKind = "tr"
)

// action is the decoded callback payload. Only the fields the kind needs
// are set.
type action struct {
	kind   actionKind
	taskID int64
	newsID int64
}

// encodeAction renders an action as callback data. Telegram limits the
// payload to 64 bytes, so only identifiers travel in it.
func encodeAction(a action) string {
	switch a.kind {
	case actionIrrelevant:
		return fmt.Sprintf("%s:%d:%d", a.kind, a.taskID, a.newsID)
	case actionTranslate:
		return fmt.Sprintf("%s:%d", a.kind, a.newsID)
	}
	return ""
}

// parseAction decodes callback data, rejecting anything outside the known
// variants.
func parseAction(data string) (action, bool) {
	parts := strings.Split(data, ":")
	switch {
	case len(parts) == 3 && parts[0] == string(actionIrrelevant):
		taskID, err1 := strconv.ParseInt(parts[1], 10, 64)
		newsID, err2 := strconv.ParseInt(parts[2], 10, 64)
		if err1 != nil || err2 != nil {
			return action{}, false
		}
		return action{kind: actionIrrelevant, taskID: taskID, newsID: newsID}, true
	case len(parts) == 2 && parts[0] == string(actionTranslate):
		newsID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return action{}, false
		}
		return action{kind: actionTranslate, newsID: newsID}, true
	}
	return action{}, false
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	ack := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(ack); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	// Telegram omits the message for expired or inline-origin callbacks.
	if cb.Message == nil {
		b.log.Warn("callback without message", "data", cb.Data)
		return
	}
	chatID := cb.Message.Chat.ID

	a, ok := parseAction(cb.Data)
	if !ok {
		b.log.Warn("invalid callback data", "data", cb.Data)
		return
	}

	b.log.Info("callback", "action", string(a.kind), "chat_id", chatID, "user_id", cb.From.ID)

	switch a.kind {
	case actionIrrelevant:
		b.handleIrrelevant(ctx, chatID, a.taskID, a.newsID)
	case actionTranslate:
		b.handleTranslate(ctx, chatID, a.newsID)
	}
}

// handleIrrelevant records a human correction: the item is appended to the
// task's false positives so future prompts steer away from it.
func (b *Bot) handleIrrelevant(ctx context.Context, chatID, taskID, newsID int64) {
	item, err := b.store.GetNews(ctx, newsID)
	if err != nil {
		b.log.Error("load news for correction", "news_id", newsID, "error", err)
		b.reply(chatID, "Something went wrong.")
		return
	}
	if err := b.store.AppendFalsePositive(ctx, taskID, *item); err != nil {
		b.log.Error("append false positive", "task_id", taskID, "error", err)
		b.reply(chatID, "Something went wrong.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Marked as irrelevant: %s", item.Title))
}

// handleTranslate fetches the full article text and replies with its
// English translation, chunked to fit Telegram's message limit.
func (b *Bot) handleTranslate(ctx context.Context, chatID, newsID int64) {
	item, err := b.store.GetNews(ctx, newsID)
	if err != nil {
		b.log.Error("load news for translation", "news_id", newsID, "error", err)
		b.reply(chatID, "Something went wrong.")
		return
	}
	if item.Link == "" {
		b.reply(chatID, "There is no article link to translate.")
		return
	}

	text, err := b.extractArticle(ctx, item.Link)
	if err != nil {
		b.log.Error("extract article", "link", item.Link, "error", err)
		b.reply(chatID, "Could not fetch the full article text.")
		return
	}

	translated, err := b.translator.Translate(ctx, text)
	if err != nil {
		b.log.Error("translate article", "link", item.Link, "error", err)
		b.reply(chatID, "Translation failed, please try again later.")
		return
	}

	for _, chunk := range chunkMessage(translated) {
		b.reply(chatID, chunk)
	}
}

func (b *Bot) extractArticle(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch article: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	doc, err := readability.FromReader(resp.Body, nil)
	if err != nil {
		return "", fmt.Errorf("extract readable text: %w", err)
	}
	return cleanText(doc.TextContent), nil
}

// readability leaves runs of blank lines behind; collapse them.
var redundantNewlines = regexp.MustCompile(`\n{3,}`)

func cleanText(text string) string {
	return strings.TrimSpace(redundantNewlines.ReplaceAllString(text, "\n\n"))
}
