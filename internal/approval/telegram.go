package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Callback data prefixes on the inline keyboard
const (
	approvePrefix = "approve:"
	rejectPrefix  = "reject:"
)

// ErrMissingCredentials is returned when the bot token or chat id is absent
var ErrMissingCredentials = errors.New("approval: telegram bot token and chat id are required")

// Telegram is a Channel backed by a Telegram bot. Only updates from the
// configured chat are considered.
type Telegram struct {
	bot    *telego.Bot
	chatID int64
	logger *slog.Logger
}

// NewTelegram creates a Telegram channel. chatID is the numeric chat id as
// configured in TELEGRAM_CHAT_ID.
func NewTelegram(token, chatID string, logger *slog.Logger) (*Telegram, error) {
	token = strings.TrimSpace(token)
	chatID = strings.TrimSpace(chatID)
	if token == "" || chatID == "" {
		return nil, ErrMissingCredentials
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("approval: invalid telegram chat id %q: %w", chatID, err)
	}
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("approval: create telegram bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{bot: bot, chatID: id, logger: logger}, nil
}

// Listen long-polls for updates until ctx is done
func (t *Telegram) Listen(ctx context.Context) (<-chan Event, error) {
	updates, err := t.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("approval: start long polling: %w", err)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		for update := range updates {
			if q := update.CallbackQuery; q != nil {
				if err := t.bot.AnswerCallbackQuery(ctx, tu.CallbackQuery(q.ID)); err != nil {
					t.logger.Debug("failed to answer callback query", "error", err)
				}
			}
			ev, ok := eventFromUpdate(update, t.chatID)
			if !ok {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

// Send posts text with Approve and Reject buttons
func (t *Telegram) Send(ctx context.Context, token, text string) error {
	keyboard := tu.InlineKeyboard(tu.InlineKeyboardRow(
		tu.InlineKeyboardButton("Approve").WithCallbackData(approvePrefix+token),
		tu.InlineKeyboardButton("Reject").WithCallbackData(rejectPrefix+token),
	))
	msg := tu.Message(tu.ID(t.chatID), text).WithReplyMarkup(keyboard)
	if _, err := t.bot.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Notify posts a plain message
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if _, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(t.chatID), text)); err != nil {
		return fmt.Errorf("telegram notify: %w", err)
	}
	return nil
}

// eventFromUpdate converts an update from chatID into an Event
func eventFromUpdate(update telego.Update, chatID int64) (Event, bool) {
	if q := update.CallbackQuery; q != nil {
		if q.Message == nil || q.Message.GetChat().ID != chatID {
			return Event{}, false
		}
		switch {
		case strings.HasPrefix(q.Data, approvePrefix):
			return Event{Kind: EventApprove, Token: strings.TrimPrefix(q.Data, approvePrefix)}, true
		case strings.HasPrefix(q.Data, rejectPrefix):
			return Event{Kind: EventReject, Token: strings.TrimPrefix(q.Data, rejectPrefix)}, true
		}
		return Event{}, false
	}

	if msg := update.Message; msg != nil {
		if msg.Chat.ID != chatID {
			return Event{}, false
		}
		text := strings.TrimSpace(msg.Text)
		if text == "" || strings.HasPrefix(text, "/") {
			return Event{}, false
		}
		return Event{Kind: EventText, Text: text}, true
	}
	return Event{}, false
}

var _ Channel = (*Telegram)(nil)
