package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hray3182/gabay/internal/reminder"
	"github.com/sashabaranov/go-openai"
)

type Client struct {
	client *openai.Client
	model  string
}

func New(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Intent is the structured reading of one chat message.
type Intent struct {
	Action          string `json:"action"`
	Message         string `json:"message"`
	TriggerTime     string `json:"trigger_time"`
	Frequency       string `json:"frequency"`
	Recipient       string `json:"recipient"`
	IntervalSeconds *int   `json:"interval_seconds"`
	RemainingCount  *int   `json:"remaining_count"`
	Reply           string `json:"reply"`
	RawResponse     string `json:"-"`
}

// IsReminder reports whether the intent maps to a reminder skill call.
func (i *Intent) IsReminder() bool {
	switch i.Action {
	case "create", "list", "delete":
		return true
	}
	return false
}

func (i *Intent) Request() reminder.Request {
	return reminder.Request{
		Action:          i.Action,
		Message:         i.Message,
		TriggerTime:     i.TriggerTime,
		Frequency:       i.Frequency,
		Recipient:       i.Recipient,
		IntervalSeconds: i.IntervalSeconds,
		RemainingCount:  i.RemainingCount,
	}
}

const systemPromptTemplate = `You are gabay, a personal assistant that manages reminders.

Current time (UTC): %s

Read the user's message and decide the action:
- create: schedule a reminder
- list: show the user's pending reminders
- delete: remove reminders whose text contains "message"
- none: anything else; answer briefly in "reply"

Rules:
1. trigger_time must be an absolute ISO-8601 UTC timestamp (YYYY-MM-DDTHH:MM:SSZ). Resolve
   relative phrases ("tomorrow at 9", "in 20 minutes") against the current time.
2. frequency is "once", "daily" or "weekly". Use interval_seconds only for fixed intervals
   such as "every 2 hours", and remaining_count only when the user limits the repetitions
   ("3 more times" means remaining_count 3).
3. recipient is the name of the person to remind when it is not the user, otherwise "".
4. Unused fields are "" or null.`

func systemPrompt(now time.Time) string {
	return fmt.Sprintf(systemPromptTemplate, now.UTC().Format("2006-01-02 15:04 (Monday)"))
}

// JSON Schema for structured output
var intentSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"action": {
			"type": "string",
			"enum": ["create", "list", "delete", "none"],
			"description": "The reminder operation to perform"
		},
		"message": {
			"type": "string",
			"description": "Reminder text for create, search text for delete"
		},
		"trigger_time": {
			"type": "string",
			"description": "ISO-8601 UTC timestamp of the first firing"
		},
		"frequency": {
			"type": "string",
			"enum": ["once", "daily", "weekly", ""]
		},
		"recipient": {
			"type": "string",
			"description": "Contact name to remind instead of the user"
		},
		"interval_seconds": {
			"type": ["integer", "null"],
			"description": "Fixed repeat interval in seconds"
		},
		"remaining_count": {
			"type": ["integer", "null"],
			"description": "Additional firings after the first"
		},
		"reply": {
			"type": "string",
			"description": "Short message for the user when action is none"
		}
	},
	"required": ["action", "message", "trigger_time", "frequency", "recipient", "interval_seconds", "remaining_count", "reply"],
	"additionalProperties": false
}`)

func (c *Client) ParseIntent(ctx context.Context, userMessage string, now time.Time) (*Intent, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt(now),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userMessage,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "reminder_intent",
				Schema: intentSchema,
				Strict: true,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call AI API: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from AI")
	}

	return decodeIntent(resp.Choices[0].Message.Content)
}

func decodeIntent(content string) (*Intent, error) {
	intent := &Intent{RawResponse: content}
	if err := json.Unmarshal([]byte(content), intent); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}
	return intent, nil
}
