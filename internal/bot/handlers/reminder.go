package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/gabay/internal/models"
	"github.com/hray3182/gabay/internal/reminder"
)

func (h *Handlers) handleRemind(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		h.sendMessage(msg.Chat.ID, "Usage: /remind <when> | <message>\nExample: /remind in 2 hours | call mom")
		return
	}

	owner := ownerID(msg.From)
	if strings.HasPrefix(args, "{") {
		h.sendMessage(msg.Chat.ID, h.skill.HandleJSON(ctx, owner, args))
		return
	}

	when, text, ok := strings.Cut(args, "|")
	if !ok {
		// Without a separator the sentence goes to the assistant, if there is one.
		if h.ai != nil {
			h.handleAIText(ctx, msg, "remind me "+args)
			return
		}
		h.sendMessage(msg.Chat.ID, "Please separate time and message with |\nExample: /remind in 2 hours | call mom")
		return
	}

	h.sendMessage(msg.Chat.ID, h.skill.Handle(ctx, owner, reminder.Request{
		Action:      "create",
		TriggerTime: strings.TrimSpace(when),
		Message:     strings.TrimSpace(text),
	}))
}

func (h *Handlers) handleReminderList(ctx context.Context, msg *tgbotapi.Message) {
	h.sendMessage(msg.Chat.ID, h.skill.Handle(ctx, ownerID(msg.From), reminder.Request{Action: "list"}))
}

// handleForget asks for confirmation before deleting anything.
func (h *Handlers) handleForget(ctx context.Context, msg *tgbotapi.Message) {
	match := strings.TrimSpace(msg.CommandArguments())
	if match == "" {
		h.sendMessage(msg.Chat.ID, "Usage: /forget <text>\nDeletes every reminder whose message contains the text.")
		return
	}

	// Same scope as the delete: finished reminders match too.
	all, err := h.service.List(ctx, models.ReminderFilter{OwnerID: ownerID(msg.From)})
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list reminders")
		h.sendMessage(msg.Chat.ID, "❌ Couldn't load your reminders right now, please try again later.")
		return
	}
	count := 0
	for _, r := range all {
		if strings.Contains(strings.ToLower(r.Message), strings.ToLower(match)) {
			count++
		}
	}
	if count == 0 {
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("No reminders matched '%s'.", match))
		return
	}

	h.pendingMu.Lock()
	h.pending[msg.From.ID] = pendingDelete{Match: match, ExpiresAt: h.clock().Add(confirmationTTL)}
	h.pendingMu.Unlock()

	keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Delete", fmt.Sprintf("forget_confirm:%d", msg.From.ID)),
		tgbotapi.NewInlineKeyboardButtonData("❌ Keep", fmt.Sprintf("forget_cancel:%d", msg.From.ID)),
	))
	h.send(msg.Chat.ID, fmt.Sprintf("Delete %d reminder(s) matching '%s'?", count, match), keyboard)
}
