package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/gabay/internal/format"
	"golang.org/x/time/rate"
)

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender delivers reminder text to Telegram chats. Numeric channel ids are
// chat ids, "@name" targets are public channels.
type Sender struct {
	api     messageSender
	limiter *rate.Limiter
}

// NewSender limits outgoing messages to perSecond, with bursts of the same size.
func NewSender(api messageSender, perSecond float64) *Sender {
	if perSecond <= 0 {
		perSecond = 20
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &Sender{api: api, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (s *Sender) Deliver(ctx context.Context, channelID, text string) error {
	parsed := format.ParseMarkdown(text)

	var msg tgbotapi.MessageConfig
	channelID = strings.TrimSpace(channelID)
	if id, err := strconv.ParseInt(channelID, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, parsed.Text)
	} else if strings.HasPrefix(channelID, "@") {
		msg = tgbotapi.NewMessageToChannel(channelID, parsed.Text)
	} else {
		return errors.Newf("cannot deliver to %q: not a chat id or @channel", channelID)
	}
	msg.Entities = parsed.Entities

	if err := s.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "wait for send slot")
	}
	if _, err := s.api.Send(msg); err != nil {
		return errors.Wrapf(err, "send to %s", channelID)
	}
	return nil
}
