package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sethvargo/go-retry"

	"newswatch/internal/model"
)

// NotifyMatch sends a relevant-news notification with the correction
// affordances attached. Delivery is retried with backoff; at-least-once,
// never exactly-once.
func (b *Bot) NotifyMatch(ctx context.Context, chatID int64, item model.NewsItem, task model.Task, post string) error {
	msg := tgbotapi.NewMessage(chatID, FormatNotification(item, task, post))
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Mark irrelevant",
				encodeAction(action{kind: actionIrrelevant, taskID: task.ID, newsID: item.ID})),
			tgbotapi.NewInlineKeyboardButtonData("Translate",
				encodeAction(action{kind: actionTranslate, newsID: item.ID})),
		),
	)
	return b.sendWithRetry(ctx, msg)
}

// SendText sends a plain text message, retried the same way.
func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	return b.sendWithRetry(ctx, msg)
}

func (b *Bot) sendWithRetry(ctx context.Context, msg tgbotapi.MessageConfig) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if _, err := b.api.Send(msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
