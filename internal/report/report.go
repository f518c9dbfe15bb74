// Package report posts run summaries to an operator Telegram chat.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"topicpush/internal/reconcile"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends one message per run.
type Telegram struct {
	api    telegramAPI
	chatID int64
	log    *slog.Logger
}

// NewTelegram creates a reporter for the given bot token and chat.
func NewTelegram(token string, chatID int64, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Telegram{api: api, chatID: chatID, log: log}, nil
}

// Report sends the summary of res. Failures are logged, never returned.
func (t *Telegram) Report(_ context.Context, res reconcile.Result, runErr error) {
	msg := tgbotapi.NewMessage(t.chatID, FormatResult(res, runErr))
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		t.log.Error("send run report", "chat_id", t.chatID, "error", err)
	}
}

// Nop discards reports.
type Nop struct{}

// Report does nothing.
func (Nop) Report(context.Context, reconcile.Result, error) {}

// FormatResult renders a run summary as plain text.
func FormatResult(res reconcile.Result, runErr error) string {
	var b strings.Builder
	status := "ok"
	if runErr != nil {
		status = "failed"
	}
	fmt.Fprintf(&b, "Topic push run %s [%s]\n\n", res.RunID, status)
	fmt.Fprintf(&b, "Items: %d (%d enriched)\n", res.Items, res.Enriched)
	fmt.Fprintf(&b, "Users: %d (%d eligible)\n", res.Users, res.Eligible)
	fmt.Fprintf(&b, "Sent: %d, failed: %d, nothing new: %d", res.Sent, res.Failed, res.Idle)
	if runErr != nil {
		fmt.Fprintf(&b, "\n\nError: %v", runErr)
	}
	return b.String()
}
