// Package bot implements the Telegram surface: subscription commands,
// notification delivery, and the reply actions correcting the classifier.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tomakado/containers/set"

	"newswatch/internal/model"
	"newswatch/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Translator produces English text for the translate reply action.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Bot is the Telegram bot that handles user commands and sends
// notifications.
type Bot struct {
	api        telegramAPI
	store      storage.Storage
	translator Translator
	http       *http.Client
	admins     set.HashSet[int64]
	log        *slog.Logger
}

// New creates a Bot with the given Telegram token, storage, and translator.
func New(token string, store storage.Storage, translator Translator, adminIDs []int64, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:        api,
		store:      store,
		translator: translator,
		http:       http.DefaultClient,
		admins:     set.New(adminIDs...),
		log:        log,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID
	userID := msg.From.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(ctx, userID, chatID)
	case "stop":
		b.handleStop(ctx, userID, chatID)
	case "help":
		b.handleHelp(chatID)
	case "addsource", "sources", "rmsource":
		if !b.isAdmin(userID) {
			b.reply(chatID, "Access denied.")
			return
		}
		switch cmd {
		case "addsource":
			b.handleAddSource(ctx, chatID, args)
		case "sources":
			b.handleListSources(ctx, chatID)
		case "rmsource":
			b.handleRemoveSource(ctx, chatID, args)
		}
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

func (b *Bot) handleStart(ctx context.Context, userID, chatID int64) {
	err := b.store.AddSubscriber(ctx, model.Subscriber{TgID: userID, ChatID: chatID})
	if err != nil {
		b.log.Error("add subscriber", "tg_id", userID, "error", err)
		b.reply(chatID, "Something went wrong, please try again.")
		return
	}
	b.log.Info("user subscribed", "tg_id", userID, "chat_id", chatID)
	b.reply(chatID, "Hi! I monitor news feeds and send relevant items to this chat.\n\nYou are now subscribed.")
}

func (b *Bot) handleStop(ctx context.Context, userID, chatID int64) {
	removed, err := b.store.RemoveSubscriber(ctx, userID)
	if err != nil {
		b.log.Error("remove subscriber", "tg_id", userID, "error", err)
		b.reply(chatID, "Something went wrong, please try again.")
		return
	}
	if removed {
		b.reply(chatID, "You are unsubscribed.")
	} else {
		b.reply(chatID, "Could not unsubscribe. Perhaps you were not subscribed.")
	}
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, strings.Join([]string{
		"/start - subscribe to notifications",
		"/stop - unsubscribe",
		"/addsource <name> <url|channel> [telegram] - add a feed source (admin)",
		"/sources - list feed sources (admin)",
		"/rmsource <name> - remove a feed source (admin)",
	}, "\n"))
}

func (b *Bot) handleAddSource(ctx context.Context, chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		b.reply(chatID, "Usage: /addsource <name> <url|channel> [telegram]")
		return
	}
	kind := model.SourceRSS
	if len(fields) > 2 && fields[2] == string(model.SourceTelegram) {
		kind = model.SourceTelegram
	}
	src := model.Source{Name: fields[0], URL: fields[1], Kind: kind}
	if err := b.store.AddSource(ctx, &src); err != nil {
		b.log.Error("add source", "name", src.Name, "error", err)
		b.reply(chatID, fmt.Sprintf("Failed to add source %q.", src.Name))
		return
	}
	b.reply(chatID, fmt.Sprintf("Source %q added.", src.Name))
}

func (b *Bot) handleListSources(ctx context.Context, chatID int64) {
	sources, err := b.store.ListSources(ctx)
	if err != nil {
		b.log.Error("list sources", "error", err)
		b.reply(chatID, "Failed to list sources.")
		return
	}
	b.reply(chatID, FormatSourceList(sources))
}

func (b *Bot) handleRemoveSource(ctx context.Context, chatID int64, args string) {
	name := strings.TrimSpace(args)
	if name == "" {
		b.reply(chatID, "Usage: /rmsource <name>")
		return
	}
	if err := b.store.DeleteSource(ctx, name); err != nil {
		b.log.Error("remove source", "name", name, "error", err)
		b.reply(chatID, fmt.Sprintf("Failed to remove source %q.", name))
		return
	}
	b.reply(chatID, fmt.Sprintf("Source %q removed.", name))
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.admins.Contains(userID)
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}
