package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

type draftStage int

const (
	awaitingText draftStage = iota + 1
	awaitingLabel
)

// broadcastDraft is an /admin conversation: the message text first, then
// the label of the button that opens the WebApp.
type broadcastDraft struct {
	stage draftStage
	text  string
}

func (b *Bot) isAdmin(from *tgbotapi.User) bool {
	return from != nil && b.opts.AdminUsername != "" && strings.EqualFold(from.UserName, b.opts.AdminUsername)
}

func (b *Bot) handleAdmin(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if !b.isAdmin(msg.From) {
		b.log.WithField("user_id", msg.From.ID).Warn("Rejected /admin")
		b.sendMessage(chatID, "Access denied.")
		return
	}
	if b.users == nil {
		b.sendMessage(chatID, "The player directory is not available.")
		return
	}

	total, err := b.users.CountUsers(ctx)
	if err != nil {
		b.log.WithError(err).Error("Failed to count users")
		b.sendMessage(chatID, "The player directory is not available.")
		return
	}

	b.mu.Lock()
	b.drafts[chatID] = &broadcastDraft{stage: awaitingText}
	b.mu.Unlock()

	b.sendMessage(chatID, fmt.Sprintf("Admin panel\nPlayers: %d\n\nSend the broadcast text, or /cancel.", total))
}

func (b *Bot) cancelDraft(chatID int64) {
	b.mu.Lock()
	_, ok := b.drafts[chatID]
	delete(b.drafts, chatID)
	b.mu.Unlock()

	if ok {
		b.sendMessage(chatID, "Broadcast cancelled.")
	}
}

// handleDraftReply advances the admin's broadcast conversation. Text from
// chats without a draft is ignored.
func (b *Bot) handleDraftReply(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	b.mu.Lock()
	draft, ok := b.drafts[chatID]
	if !ok || !b.isAdmin(msg.From) {
		b.mu.Unlock()
		return
	}
	var text, label string
	switch draft.stage {
	case awaitingText:
		draft.text = msg.Text
		draft.stage = awaitingLabel
	case awaitingLabel:
		text, label = draft.text, msg.Text
		delete(b.drafts, chatID)
	}
	b.mu.Unlock()

	if label == "" {
		b.sendMessage(chatID, "Text saved. Send the button label.")
		return
	}
	b.broadcast(ctx, chatID, text, label)
}

// broadcast sends text to every known player, one message each, and
// reports the delivery count to the admin.
func (b *Bot) broadcast(ctx context.Context, adminChat int64, text, label string) {
	ids, err := b.users.ListUserIDs(ctx)
	if err != nil {
		b.log.WithError(err).Error("Failed to list users")
		b.sendMessage(adminChat, "The player directory is not available.")
		return
	}

	b.sendMessage(adminChat, fmt.Sprintf("Sending to %d players...", len(ids)))

	var ok, failed int
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		msg := tgbotapi.NewMessage(id, text)
		if b.opts.WebAppURL != "" {
			msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(label, b.opts.WebAppURL)),
			)
		}
		if _, err := b.api.Send(msg); err != nil {
			b.log.WithError(err).WithField("user_id", id).Warn("Broadcast delivery failed")
			failed++
			continue
		}
		ok++
	}

	b.log.WithFields(logrus.Fields{"delivered": ok, "failed": failed}).Info("Broadcast finished")
	b.sendMessage(adminChat, fmt.Sprintf("Done.\nDelivered: %d\nFailed: %d", ok, failed))
}
