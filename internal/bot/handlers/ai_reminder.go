package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (h *Handlers) handleAIMessage(ctx context.Context, msg *tgbotapi.Message) {
	if h.ai == nil {
		h.sendMessage(msg.Chat.ID, "Natural language is not enabled. Use /remind <when> | <message>, see /help")
		return
	}
	h.handleAIText(ctx, msg, msg.Text)
}

func (h *Handlers) handleAIText(ctx context.Context, msg *tgbotapi.Message, text string) {
	// Show typing indicator
	if _, err := h.api.Request(tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping)); err != nil {
		h.log.Debug().Err(err).Msg("failed to send typing action")
	}

	intent, err := h.ai.ParseIntent(ctx, text, h.clock())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to parse intent")
		h.sendMessage(msg.Chat.ID, "❌ Sorry, I couldn't understand that. Try /remind <when> | <message>")
		return
	}
	h.log.Debug().Str("action", intent.Action).Str("raw", intent.RawResponse).Msg("parsed intent")

	if !intent.IsReminder() {
		reply := intent.Reply
		if reply == "" {
			reply = "I can help with reminders. See /help"
		}
		h.sendMessage(msg.Chat.ID, reply)
		return
	}

	h.sendMessage(msg.Chat.ID, h.skill.Handle(ctx, ownerID(msg.From), intent.Request()))
}
