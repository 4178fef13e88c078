// Package format converts the light Markdown used in bot replies into plain
// text plus Telegram message entities.
package format

import (
	"regexp"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ParseResult contains plain text and message entities
type ParseResult struct {
	Text     string
	Entities []tgbotapi.MessageEntity
}

var (
	headerRe = regexp.MustCompile(`(?m)^#{1,6}\s+(.+?)$`)
	// Bold, code and single-star italic, leftmost first. Underscores are left
	// alone: reminder text is full of addresses and snake_case names.
	inlineRe = regexp.MustCompile("\\*\\*(.+?)\\*\\*|`([^`]+)`|\\*([^*\\s](?:[^*]*[^*\\s])?)\\*")
)

// UTF16Len is the length of s in UTF-16 code units, the unit Telegram uses
// for entity offsets.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += len(utf16.Encode([]rune{r}))
	}
	return n
}

// ParseMarkdown strips **bold**, `code`, *italic* and # headers (rendered
// bold) from text and returns the matching entities in offset order.
func ParseMarkdown(text string) ParseResult {
	text = headerRe.ReplaceAllString(text, "**$1**")

	var (
		out      strings.Builder
		entities []tgbotapi.MessageEntity
		offset   int
		last     int
	)
	for _, m := range inlineRe.FindAllStringSubmatchIndex(text, -1) {
		plain := text[last:m[0]]
		out.WriteString(plain)
		offset += UTF16Len(plain)

		var kind, inner string
		switch {
		case m[2] != -1:
			kind, inner = "bold", text[m[2]:m[3]]
		case m[4] != -1:
			kind, inner = "code", text[m[4]:m[5]]
		default:
			kind, inner = "italic", text[m[6]:m[7]]
		}

		length := UTF16Len(inner)
		entities = append(entities, tgbotapi.MessageEntity{Type: kind, Offset: offset, Length: length})
		out.WriteString(inner)
		offset += length
		last = m[1]
	}
	out.WriteString(text[last:])

	return ParseResult{
		Text:     strings.TrimRight(out.String(), " \n"),
		Entities: entities,
	}
}
