package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/gabay/internal/models"
)

func (h *Handlers) handleContact(ctx context.Context, msg *tgbotapi.Message) {
	owner := ownerID(msg.From)
	fields := strings.Fields(msg.CommandArguments())

	if len(fields) == 0 {
		contacts, err := h.contacts.ListContacts(ctx, owner)
		if err != nil {
			h.log.Error().Err(err).Msg("failed to list contacts")
			h.sendMessage(msg.Chat.ID, "❌ Couldn't load your contacts right now.")
			return
		}
		if len(contacts) == 0 {
			h.sendMessage(msg.Chat.ID, "You have no contacts yet.\nUsage: /contact <name> <chat id>")
			return
		}
		var b strings.Builder
		b.WriteString("📇 **Your contacts:**\n")
		for _, c := range contacts {
			fmt.Fprintf(&b, "- %s → `%s`\n", c.Name, c.ChannelID)
		}
		h.sendMessage(msg.Chat.ID, b.String())
		return
	}

	if len(fields) < 2 {
		h.sendMessage(msg.Chat.ID, "Usage: /contact <name> <chat id>")
		return
	}
	channel := fields[len(fields)-1]
	name := strings.Join(fields[:len(fields)-1], " ")

	if err := h.contacts.SaveContact(ctx, owner, name, channel); err != nil {
		if models.IsValidation(err) {
			h.sendMessage(msg.Chat.ID, "❌ "+err.Error())
			return
		}
		h.log.Error().Err(err).Msg("failed to save contact")
		h.sendMessage(msg.Chat.ID, "❌ Couldn't save the contact right now.")
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("📇 Saved %s → `%s`", strings.ToLower(name), channel))
}
