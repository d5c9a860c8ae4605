// Package notify delivers operator alerts. Permanent submission failures need
// a human to step in, so they are pushed out instead of waiting to be noticed
// in the queue listing.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jonathan/autoapply/internal/types"
)

// Reporter sends operator-facing alerts.
type Reporter interface {
	PermanentFailure(item *types.QueueItem, candidate *types.JobCandidate, detail string) error
	Submitted(item *types.QueueItem, candidate *types.JobCandidate) error
}

// TelegramReporter sends alerts to a Telegram chat.
type TelegramReporter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramReporter creates a reporter for the given bot token and chat.
func NewTelegramReporter(token string, chatID int64) (*TelegramReporter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}

	return &TelegramReporter{
		bot:    bot,
		chatID: chatID,
	}, nil
}

func (t *TelegramReporter) sendMessage(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "HTML"
	_, err := t.bot.Send(msg)
	return err
}

// PermanentFailure alerts that automation halted for an application and
// manual follow-up is needed.
func (t *TelegramReporter) PermanentFailure(item *types.QueueItem, candidate *types.JobCandidate, detail string) error {
	text := fmt.Sprintf(
		"⚠️ <b>Application failed permanently</b>\n"+
			"🏢 %s\n"+
			"💼 %s\n"+
			"🔁 %d attempts\n"+
			"❌ %s",
		candidate.Company,
		candidate.Title,
		item.RetryCount+1,
		detail,
	)
	return t.sendMessage(text)
}

// Submitted reports a successful submission.
func (t *TelegramReporter) Submitted(item *types.QueueItem, candidate *types.JobCandidate) error {
	text := fmt.Sprintf(
		"✅ <b>Application submitted</b>\n"+
			"🏢 %s\n"+
			"💼 %s",
		candidate.Company,
		candidate.Title,
	)
	return t.sendMessage(text)
}

// NoopReporter discards alerts. Used when no Telegram token is configured.
type NoopReporter struct{}

func (NoopReporter) PermanentFailure(*types.QueueItem, *types.JobCandidate, string) error {
	return nil
}

func (NoopReporter) Submitted(*types.QueueItem, *types.JobCandidate) error {
	return nil
}
