package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier posts alerts to a chat through the Bot API sendMessage
// method, formatted as MarkdownV2.
type TelegramNotifier struct {
	botToken string
	chatID   string
	apiURL   string
	client   *http.Client
}

// NewTelegramNotifier creates a notifier for the bot token and target chat.
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		apiURL:   telegramAPI,
		client:   newHTTPClient(),
	}
}

type telegramReply struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     formatTelegram(alert),
		"parse_mode":               "MarkdownV2",
		"disable_web_page_preview": true,
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.botToken)

	body, err := postJSON(ctx, t.client, "telegram", url, payload, nil)
	if err != nil {
		// the Bot API explains rejections in "description"
		var de *DeliveryError
		var reply telegramReply
		if errors.As(err, &de) && json.Unmarshal(body, &reply) == nil && reply.Description != "" {
			de.Detail = reply.Description
		}
		return err
	}

	slog.Debug("telegram alert sent", "symbol", alert.Symbol, "signal", alert.Signal)
	return nil
}

// formatTelegram renders alert as a MarkdownV2 message: a level marker and
// bold title, the message, then a signal line when the alert carries one.
func formatTelegram(a Alert) string {
	var b strings.Builder
	switch a.Level {
	case AlertCritical:
		b.WriteString("🚨 ")
	case AlertWarning:
		b.WriteString("⚠️ ")
	default:
		b.WriteString("📈 ")
	}
	b.WriteString("*" + escapeMarkdown(a.Title) + "*")
	if a.Message != "" {
		b.WriteString("\n\n" + escapeMarkdown(a.Message))
	}
	if a.Symbol != "" && a.Signal != "" {
		line := fmt.Sprintf("%s %s @ %.2f", a.Signal, a.Symbol, a.Price)
		if a.Strategy != "" {
			line += " (" + a.Strategy + ")"
		}
		b.WriteString("\n\n" + escapeMarkdown(line))
	}
	if !a.TS.IsZero() {
		b.WriteString("\n_" + escapeMarkdown(a.TS.UTC().Format(time.RFC3339)) + "_")
	}
	return b.String()
}

// escapeMarkdown escapes the MarkdownV2 reserved characters.
func escapeMarkdown(s string) string {
	const reserved = "_*[]()~`>#+-=|{}.!\\"
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if strings.ContainsRune(reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
