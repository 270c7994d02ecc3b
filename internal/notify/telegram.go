package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/crossarb/internal/strategy"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM NOTIFIER - Dispatch and status push messages
// ═══════════════════════════════════════════════════════════════════════════════

// Notifier receives strategy notifications
type Notifier interface {
	NotifyDispatch(d strategy.Dispatch)
	NotifyStatus(text string)
}

// Telegram pushes notifications to a chat
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram creates a Telegram notifier
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is empty")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is not set")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram notifier initialized")
	return &Telegram{api: api, chatID: chatID}, nil
}

// NotifyDispatch announces one executed arbitrage
func (t *Telegram) NotifyDispatch(d strategy.Dispatch) {
	one := decimal.NewFromInt(1)
	text := fmt.Sprintf(
		"🎯 <b>Arbitrage dispatched</b>\n"+
			"Buy %s @ ~%s\n"+
			"Sell %s @ ~%s\n"+
			"Amount: %s\n"+
			"Profitability: %s%%",
		d.BuyLeg, d.BuyPrice.String(),
		d.SellLeg, d.SellPrice.String(),
		d.Amount.String(),
		d.Profitability.Sub(one).Mul(decimal.NewFromInt(100)).StringFixed(4),
	)
	t.send(text)
}

// NotifyStatus pushes a rendered status snapshot
func (t *Telegram) NotifyStatus(text string) {
	t.send("<pre>" + text + "</pre>")
}

func (t *Telegram) send(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.api.Send(msg); err != nil {
		log.Warn().Err(err).Msg("Telegram send failed")
	}
}
