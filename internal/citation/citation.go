package citation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FirstRow is the first row that can hold a citation. Row 1 is the header.
const FirstRow = 2

// Style is an inline text style kept on a citation body.
type Style string

const (
	StyleBold   Style = "bold"
	StyleItalic Style = "italic"
	StyleCode   Style = "code"
)

// Span marks a styled region of a citation body. Offset and Length are in runes.
type Span struct {
	Offset int   `json:"offset"`
	Length int   `json:"length"`
	Style  Style `json:"style"`
}

// SourceType tells how a citation was captured.
type SourceType string

const (
	SourceManual  SourceType = "manual"
	SourceForward SourceType = "forward"
	SourceReply   SourceType = "reply"
)

// MessageRef points at a chat message.
type MessageRef struct {
	ChatID    int64 `json:"chatId"`
	MessageID int   `json:"messageId"`
}

// Source is the provenance of a citation, captured at creation time.
type Source struct {
	Type      SourceType  `json:"type"`
	ChatID    int64       `json:"chatId"`
	MessageID int         `json:"messageId"`
	ReplyTo   *MessageRef `json:"replyTo,omitempty"`
}

// Is reports whether the citation was captured from the given message in the
// given way. A nil source matches nothing.
func (s *Source) Is(typ SourceType, chatID int64, messageID int) bool {
	return s != nil && s.Type == typ && s.ChatID == chatID && s.MessageID == messageID
}

// Citation is a single stored quote. Row doubles as its identifier.
type Citation struct {
	Row     int
	Who     string
	What    string
	Spans   []Span
	Comment string
	Likes   Likes
	Source  *Source
}

// Likes is the set of voter identities that liked a citation.
type Likes map[string]bool

// Has reports whether voter is in the set.
func (l Likes) Has(voter string) bool {
	return l[voter]
}

// Toggle flips voter membership and reports whether voter is now present.
func (l Likes) Toggle(voter string) bool {
	if l[voter] {
		delete(l, voter)
		return false
	}
	l[voter] = true
	return true
}

// Voters returns the sorted voter identities.
func (l Likes) Voters() []string {
	voters := make([]string, 0, len(l))
	for v := range l {
		voters = append(voters, v)
	}
	sort.Strings(voters)
	return voters
}

// MarshalLikes serializes likes as a key-presence map.
func MarshalLikes(l Likes) (string, error) {
	if l == nil {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]bool(l))
	if err != nil {
		return "", fmt.Errorf("marshal likes: %w", err)
	}
	return string(data), nil
}

// UnmarshalLikes parses a key-presence map. Empty input yields an empty set.
func UnmarshalLikes(s string) (Likes, error) {
	likes := Likes{}
	if strings.TrimSpace(s) == "" {
		return likes, nil
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal likes: %w", err)
	}
	for k, v := range raw {
		// Presence is what matters; false or null values are dropped.
		if v == nil || v == false {
			continue
		}
		likes[k] = true
	}
	return likes, nil
}

// MarshalSource serializes a source; nil becomes an empty string.
func MarshalSource(s *Source) (string, error) {
	if s == nil {
		return "", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal source: %w", err)
	}
	return string(data), nil
}

// UnmarshalSource parses a serialized source. Empty input yields nil.
func UnmarshalSource(s string) (*Source, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var src Source
	if err := json.Unmarshal([]byte(s), &src); err != nil {
		return nil, fmt.Errorf("unmarshal source: %w", err)
	}
	return &src, nil
}

// ManualSource builds the provenance of a citation typed with /cite.
func ManualSource(chatID int64, messageID int) *Source {
	return &Source{Type: SourceManual, ChatID: chatID, MessageID: messageID}
}

const backRefPrefix = "ref:"

// BackReference encodes a pointer to the original message into a comment.
func BackReference(ref MessageRef) string {
	return fmt.Sprintf("%s%d/%d", backRefPrefix, ref.ChatID, ref.MessageID)
}

// ParseBackReference decodes a comment written by BackReference.
func ParseBackReference(comment string) (MessageRef, bool) {
	rest, ok := strings.CutPrefix(comment, backRefPrefix)
	if !ok {
		return MessageRef{}, false
	}
	chatPart, msgPart, ok := strings.Cut(rest, "/")
	if !ok {
		return MessageRef{}, false
	}
	chatID, err := strconv.ParseInt(chatPart, 10, 64)
	if err != nil {
		return MessageRef{}, false
	}
	msgID, err := strconv.Atoi(msgPart)
	if err != nil {
		return MessageRef{}, false
	}
	return MessageRef{ChatID: chatID, MessageID: msgID}, true
}

// SignatureTag is the comment written on citations created by the bot.
func SignatureTag(signature string) string {
	return "by " + signature
}
