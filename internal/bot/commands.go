package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"nuclight.org/citebot/internal/citation"
)

// handlerTimeout bounds one update; it must exceed the document lock timeout.
const handlerTimeout = time.Minute

func handlerContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), handlerTimeout)
}

// RegisterCommands sets up all chat commands behind the access middleware
func (b *Bot) RegisterCommands() {
	b.bot.Use(b.HandleErrors())

	chats := b.bot.Group()
	chats.Use(b.RequirePermittedChat())
	chats.Use(b.RejectBanned())

	chats.Handle("/start", b.handleHelp)
	chats.Handle("/help", b.handleHelp)
	chats.Handle("/cite", b.handleCite)
	chats.Handle("/random", b.handleRandom)
	chats.Handle("/get", b.handleGet)
	chats.Handle("/search", b.handleSearch)
	chats.Handle("/context", b.handleContext)
	chats.Handle("/quiz", b.handleQuiz, GroupOnly)
	chats.Handle("/ban", b.handleBan, GroupOnly)
	chats.Handle("/unban", b.handleUnban, GroupOnly)
	chats.Handle("/reindex", b.handleReindex, b.AdminOnly())
	chats.Handle(tele.OnText, b.handleText)
}

// stripSignature removes mentions of the bot from command text.
func (b *Bot) stripSignature(text string) string {
	if b.opts.Signature == "" {
		return text
	}
	return strings.ReplaceAll(text, b.opts.Signature, "")
}

// handleHelp shows the help message with all available commands
func (b *Bot) handleHelp(c tele.Context) error {
	helpText, err := HelpMessage()
	if err != nil {
		return err
	}
	_, err = b.SendTemporary(c.Chat(), helpText, 2*time.Minute, tele.ModeHTML)
	return err
}

// handleCite stores a citation.
// Usage:
// - /cite Сообщение (c) Вася
// - /cite as a reply: cites the replied message
func (b *Bot) handleCite(c tele.Context) error {
	m := c.Message()
	b.logger.Info("command /cite",
		"user_id", c.Sender().ID,
		"username", c.Sender().Username,
		"chat_id", c.Chat().ID,
		"reply", m.ReplyTo != nil,
	)

	if strings.TrimSpace(b.stripSignature(m.Payload)) == "" {
		if m.ReplyTo == nil {
			return UserErrorf(MsgCiteRepliesOnly)
		}
		return b.citeReply(c, m.ReplyTo)
	}

	ctx, cancel := handlerContext()
	defer cancel()

	cit, err := b.citations.AddManual(ctx, c.Chat().ID, m.ID, m.Text, SpansFromEntities(m.Text, m.Entities))
	if errors.Is(err, citation.ErrParse) {
		return UserErrorf(MsgCiteUsage)
	}
	if err != nil {
		return WrapUserError(MsgFailedSaveCite, err)
	}

	b.logger.Info("citation stored", "row", cit.Row, "source", citation.SourceManual, "chat_id", c.Chat().ID)
	return b.success(c)
}

func (b *Bot) citeReply(c tele.Context, reply *tele.Message) error {
	text, entities := reply.Text, reply.Entities
	if text == "" {
		text, entities = reply.Caption, reply.CaptionEntities
	}
	if strings.TrimSpace(text) == "" {
		return UserErrorf(MsgReplyHasNoText)
	}

	who := MsgUnknownAuthor
	switch {
	case reply.IsForwarded():
		who = forwardAuthor(reply.Origin)
	case reply.Sender != nil:
		if name := shortName(reply.Sender); name != "" {
			who = name
		}
	}

	chatID := c.Chat().ID
	ref := citation.MessageRef{ChatID: chatID, MessageID: reply.ID}
	cit := &citation.Citation{
		Who:     who,
		What:    text,
		Spans:   SpansFromEntities(text, entities),
		Comment: citation.BackReference(ref),
		Source: &citation.Source{
			Type:      citation.SourceReply,
			ChatID:    chatID,
			MessageID: c.Message().ID,
			ReplyTo:   &ref,
		},
	}

	ctx, cancel := handlerContext()
	defer cancel()

	if err := b.citations.Add(ctx, cit); err != nil {
		return WrapUserError(MsgFailedSaveCite, err)
	}
	b.logger.Info("citation stored", "row", cit.Row, "source", citation.SourceReply, "chat_id", chatID)
	return b.success(c)
}

// handleText cites messages forwarded to the bot in a private chat.
// Other plain text is ignored.
func (b *Bot) handleText(c tele.Context) error {
	m := c.Message()
	if c.Chat().Type != tele.ChatPrivate || !m.IsForwarded() {
		return nil
	}

	cit := &citation.Citation{
		Who:   forwardAuthor(m.Origin),
		What:  m.Text,
		Spans: SpansFromEntities(m.Text, m.Entities),
		Source: &citation.Source{
			Type:      citation.SourceForward,
			ChatID:    c.Chat().ID,
			MessageID: m.ID,
		},
	}

	ctx, cancel := handlerContext()
	defer cancel()

	if err := b.citations.Add(ctx, cit); err != nil {
		return WrapUserError(MsgFailedSaveCite, err)
	}
	b.logger.Info("citation stored", "row", cit.Row, "source", citation.SourceForward, "user_id", c.Sender().ID)
	return b.success(c)
}

func (b *Bot) handleRandom(c tele.Context) error {
	b.logger.Info("command /random", "user_id", c.Sender().ID, "chat_id", c.Chat().ID)

	ctx, cancel := handlerContext()
	defer cancel()

	cit, err := b.citations.Random(ctx)
	if errors.Is(err, citation.ErrNotFound) {
		return UserErrorf(MsgNoCitations)
	}
	if err != nil {
		return WrapUserError(MsgFailedGetCite, err)
	}
	return b.sendCitation(c.Chat(), cit, "")
}

// handleGet shows a citation by its number
// Usage: /get <n>
func (b *Bot) handleGet(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return UserErrorf(MsgGetUsage)
	}
	row, err := strconv.Atoi(args[0])
	if err != nil {
		return UserErrorf(MsgGetUsage)
	}

	b.logger.Info("command /get", "user_id", c.Sender().ID, "chat_id", c.Chat().ID, "row", row)

	ctx, cancel := handlerContext()
	defer cancel()

	cit, err := b.citations.Get(ctx, row)
	if errors.Is(err, citation.ErrNotFound) {
		return UserErrorf(MsgCitationNotFound)
	}
	if err != nil {
		return WrapUserError(MsgFailedGetCite, err)
	}
	return b.sendCitation(c.Chat(), cit, "")
}

// handleSearch finds citations by text or author
// Usage: /search <text>
func (b *Bot) handleSearch(c tele.Context) error {
	query := strings.TrimSpace(b.stripSignature(c.Message().Payload))
	if query == "" {
		return UserErrorf(MsgSearchUsage)
	}

	b.logger.Info("command /search", "user_id", c.Sender().ID, "chat_id", c.Chat().ID, "query", query)

	ctx, cancel := handlerContext()
	defer cancel()

	found, err := b.citations.Search(ctx, query)
	if errors.Is(err, citation.ErrQueryTooShort) {
		return UserErrorf(MsgSearchTooShort)
	}
	if err != nil {
		return WrapUserError(MsgFailedSearch, err)
	}
	if len(found) == 0 {
		return UserErrorf(MsgNothingFound)
	}

	views := make([]CitationView, 0, len(found))
	for _, cit := range found {
		views = append(views, NewCitationView(cit, b.opts.Signature))
	}
	html, err := RenderSearchResults(views)
	if err != nil {
		return WrapUserError(MsgFailedSearch, err)
	}
	return c.Send(html, tele.ModeHTML)
}

// handleContext attaches free text to a citation
// Usage: /context <n> <text>
func (b *Bot) handleContext(c tele.Context) error {
	rowArg, text, _ := strings.Cut(strings.TrimSpace(b.stripSignature(c.Message().Payload)), " ")
	row, err := strconv.Atoi(rowArg)
	if err != nil || strings.TrimSpace(text) == "" {
		return UserErrorf(MsgContextUsage)
	}

	b.logger.Info("command /context", "user_id", c.Sender().ID, "chat_id", c.Chat().ID, "row", row)

	ctx, cancel := handlerContext()
	defer cancel()

	err = b.citations.SetComment(ctx, row, text)
	switch {
	case errors.Is(err, citation.ErrNotFound):
		return UserErrorf(MsgCitationNotFound)
	case errors.Is(err, citation.ErrCommentLocked):
		return UserErrorf(MsgCommentLocked)
	case err != nil:
		return WrapUserError(MsgFailedSaveContext, err)
	}
	return c.Send(fmt.Sprintf(MsgFmtContextSaved, row))
}

// handleReindex drops the edit index so the next edit rebuilds it from the table
func (b *Bot) handleReindex(c tele.Context) error {
	b.logger.Info("command /reindex", "user_id", c.Sender().ID, "chat_id", c.Chat().ID)

	ctx, cancel := handlerContext()
	defer cancel()

	if err := b.citations.Index().Invalidate(ctx); err != nil {
		return WrapUserError(MsgFailedReindex, err)
	}
	return c.Send(MsgReindexed)
}
