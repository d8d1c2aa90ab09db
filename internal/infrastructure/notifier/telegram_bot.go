package notifier

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	service "flashdeal/internal/domain/service/deal"
	"flashdeal/pkg/contextx"
	"flashdeal/pkg/logx"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

// TelegramBot pushes deal lifecycle alerts to an ops chat.
type TelegramBot struct {
	bot    *telego.Bot
	chatID int64
}

func NewTelegramBot(token string, chatID int64) (*TelegramBot, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &TelegramBot{
		bot:    bot,
		chatID: chatID,
	}, nil
}

// Run consumes deal events until the channel closes or the context ends.
func (b *TelegramBot) Run(ctx context.Context, events <-chan service.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := b.SendEvent(ctx, event); err != nil {
				logger(ctx).Error("failed to send event", logx.Error(err))
			}
		}
	}
}

func (b *TelegramBot) SendEvent(ctx context.Context, event service.Event) error {
	text := fmt.Sprintf(
		"<b>Deal %s</b>\n\n"+
			"Product: %s\n"+
			"Discount: %.0f%%\n"+
			"Redemptions: %d",
		event.Kind,
		event.Product.Name,
		event.Deal.DiscountRate*100,
		len(event.Deal.Redeemers),
	)

	msg := tu.Message(
		tu.ID(b.chatID),
		text,
	).WithParseMode(telego.ModeHTML)

	if _, err := b.bot.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

// SendText sends a plain text message.
func (b *TelegramBot) SendText(ctx context.Context, text string) error {
	msg := tu.Message(tu.ID(b.chatID), text)

	_, err := b.bot.SendMessage(ctx, msg)
	return err
}
