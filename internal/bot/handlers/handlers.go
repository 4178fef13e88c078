package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/gabay/internal/ai"
	"github.com/hray3182/gabay/internal/format"
	"github.com/hray3182/gabay/internal/models"
	"github.com/hray3182/gabay/internal/reminder"
	"github.com/rs/zerolog"
)

// TelegramAPI is the subset of *tgbotapi.BotAPI the handlers use.
type TelegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Users interface {
	TouchUser(ctx context.Context, userID, name string) (*models.User, error)
}

type Contacts interface {
	SaveContact(ctx context.Context, ownerID, name, channelID string) error
	ListContacts(ctx context.Context, ownerID string) ([]models.Contact, error)
}

type IntentParser interface {
	ParseIntent(ctx context.Context, userMessage string, now time.Time) (*ai.Intent, error)
}

const confirmationTTL = 5 * time.Minute

type pendingDelete struct {
	Match     string
	ExpiresAt time.Time
}

type Handlers struct {
	api      TelegramAPI
	skill    *reminder.Skill
	service  *reminder.Service
	users    Users
	contacts Contacts
	ai       IntentParser
	log      zerolog.Logger
	clock    func() time.Time

	pendingMu sync.Mutex
	pending   map[int64]pendingDelete
}

// New wires the handlers. parser may be nil, which disables free-text input.
func New(api TelegramAPI, service *reminder.Service, skill *reminder.Skill, users Users, contacts Contacts, parser IntentParser, log zerolog.Logger) *Handlers {
	return &Handlers{
		api:      api,
		skill:    skill,
		service:  service,
		users:    users,
		contacts: contacts,
		ai:       parser,
		log:      log.With().Str("component", "bot").Logger(),
		clock:    time.Now,
		pending:  make(map[int64]pendingDelete),
	}
}

func ownerID(from *tgbotapi.User) string {
	return strconv.FormatInt(from.ID, 10)
}

func (h *Handlers) touch(ctx context.Context, from *tgbotapi.User) bool {
	if from == nil {
		return false
	}
	if _, err := h.users.TouchUser(ctx, ownerID(from), from.UserName); err != nil {
		h.log.Error().Err(err).Int64("user", from.ID).Msg("failed to register user")
		return false
	}
	return true
}

func (h *Handlers) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if !h.touch(ctx, msg.From) {
		return
	}

	switch msg.Command() {
	case "start":
		h.handleStart(msg)
	case "help":
		h.handleHelp(msg)
	case "remind":
		h.handleRemind(ctx, msg)
	case "reminders":
		h.handleReminderList(ctx, msg)
	case "forget":
		h.handleForget(ctx, msg)
	case "contact":
		h.handleContact(ctx, msg)
	default:
		h.sendMessage(msg.Chat.ID, "Unknown command, see /help")
	}
}

func (h *Handlers) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !h.touch(ctx, msg.From) {
		return
	}
	h.handleAIMessage(ctx, msg)
}

func (h *Handlers) HandleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	// Answer callback to remove loading state
	if _, err := h.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		h.log.Warn().Err(err).Msg("failed to answer callback")
	}

	// Callback data: "forget_confirm:userID" or "forget_cancel:userID"
	action, rawID, ok := strings.Cut(callback.Data, ":")
	if !ok || callback.Message == nil {
		return
	}
	userID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return
	}
	if callback.From == nil || callback.From.ID != userID {
		h.answerCallbackWithAlert(callback.ID, "This isn't your request")
		return
	}

	h.pendingMu.Lock()
	pending, exists := h.pending[userID]
	delete(h.pending, userID)
	h.pendingMu.Unlock()

	chatID, messageID := callback.Message.Chat.ID, callback.Message.MessageID
	if !exists || h.clock().After(pending.ExpiresAt) {
		h.editMessageText(chatID, messageID, "⏰ Confirmation expired")
		return
	}

	switch action {
	case "forget_confirm":
		reply := h.skill.Handle(ctx, strconv.FormatInt(userID, 10), reminder.Request{Action: "delete", Message: pending.Match})
		h.editMessageText(chatID, messageID, reply)
	case "forget_cancel":
		h.editMessageText(chatID, messageID, "❌ Cancelled")
	}
}

func (h *Handlers) answerCallbackWithAlert(callbackID string, text string) {
	if _, err := h.api.Request(tgbotapi.NewCallbackWithAlert(callbackID, text)); err != nil {
		h.log.Warn().Err(err).Msg("failed to answer callback with alert")
	}
}

func (h *Handlers) editMessageText(chatID int64, messageID int, text string) {
	parsed := format.ParseMarkdown(text)
	edit := tgbotapi.NewEditMessageText(chatID, messageID, parsed.Text)
	edit.Entities = parsed.Entities
	if _, err := h.api.Send(edit); err != nil {
		h.log.Warn().Err(err).Msg("failed to edit message")
	}
}

func (h *Handlers) sendMessage(chatID int64, text string) {
	h.send(chatID, text, nil)
}

func (h *Handlers) send(chatID int64, text string, markup any) {
	parsed := format.ParseMarkdown(text)
	msg := tgbotapi.NewMessage(chatID, parsed.Text)
	msg.Entities = parsed.Entities
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := h.api.Send(msg); err != nil {
		h.log.Warn().Err(err).Int64("chat", chatID).Msg("failed to send message")
	}
}

func (h *Handlers) handleStart(msg *tgbotapi.Message) {
	name := msg.From.FirstName
	if name == "" {
		name = msg.From.UserName
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf(`👋 Hi %s!

I'm **gabay**, your personal assistant. I can remind you (or someone else) about anything, once or on a schedule.

Just tell me what you need, for example:
• remind me to stretch in 30 minutes
• every day at 9am remind me to check email
• what are my reminders?

Use /help to see all commands.`, name))
}

func (h *Handlers) handleHelp(msg *tgbotapi.Message) {
	h.sendMessage(msg.Chat.ID, `📖 **Commands**

/remind <when> | <message> - set a reminder
  e.g. `+"`/remind in 2 hours | call mom`"+`
/remind {json} - set a reminder from skill arguments
/reminders - list pending reminders
/forget <text> - delete reminders containing text
/contact <name> <chat id> - save a contact for reminders
/contact - list contacts

You can also just write in plain language.`)
}
