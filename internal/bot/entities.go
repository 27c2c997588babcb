package bot

import (
	"strings"
	"unicode/utf16"

	tele "gopkg.in/telebot.v4"

	"nuclight.org/citebot/internal/citation"
)

var entityStyles = map[tele.EntityType]citation.Style{
	tele.EntityBold:   citation.StyleBold,
	tele.EntityItalic: citation.StyleItalic,
	tele.EntityCode:   citation.StyleCode,
}

// SpansFromEntities converts Telegram entities, whose offsets count UTF-16
// code units, into rune-based spans. Unsupported entity types are dropped.
func SpansFromEntities(text string, entities tele.Entities) []citation.Span {
	if len(entities) == 0 {
		return nil
	}
	toRune := utf16ToRuneIndex(text)

	var spans []citation.Span
	for _, e := range entities {
		style, ok := entityStyles[e.Type]
		if !ok {
			continue
		}
		from := runeAt(toRune, e.Offset)
		to := runeAt(toRune, e.Offset+e.Length)
		if to <= from {
			continue
		}
		spans = append(spans, citation.Span{Offset: from, Length: to - from, Style: style})
	}
	return spans
}

// utf16ToRuneIndex maps every UTF-16 offset of text to the index of the rune
// that contains it. The slice has one extra entry for the end of the text.
func utf16ToRuneIndex(text string) []int {
	var index []int
	i := 0
	for _, r := range text {
		for range utf16.RuneLen(r) {
			index = append(index, i)
		}
		i++
	}
	return append(index, i)
}

func runeAt(index []int, offset int) int {
	if offset < 0 {
		return 0
	}
	if offset >= len(index) {
		return index[len(index)-1]
	}
	return index[offset]
}

// forwardAuthor names the original author of a forwarded message: the
// sender's short name, the first word of a hidden sender's name, the channel
// post signature, or a placeholder.
func forwardAuthor(origin *tele.MessageOrigin) string {
	if origin == nil {
		return MsgUnknownAuthor
	}
	if u := origin.Sender; u != nil {
		if name := shortName(u); name != "" {
			return name
		}
	}
	if fields := strings.Fields(origin.SenderUsername); len(fields) > 0 {
		return fields[0]
	}
	if origin.Signature != "" {
		return origin.Signature
	}
	if ch := origin.Chat; ch != nil && ch.Title != "" {
		return ch.Title
	}
	if ch := origin.SenderChat; ch != nil && ch.Title != "" {
		return ch.Title
	}
	return MsgUnknownAuthor
}

// shortName is the first non-empty of first name, last name and username.
func shortName(u *tele.User) string {
	for _, s := range []string{u.FirstName, u.LastName, u.Username} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// userDisplayName joins first and last name, falling back to the username.
func userDisplayName(u *tele.User) string {
	name := strings.TrimSpace(strings.Join([]string{u.FirstName, u.LastName}, " "))
	if name != "" {
		return name
	}
	return u.Username
}

// userMention is how a user is named in chat announcements.
func userMention(u *tele.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return userDisplayName(u)
}
