package bot

import (
	"context"
	"errors"
	"fmt"
	"html"

	tele "gopkg.in/telebot.v4"

	"nuclight.org/citebot/internal/citation"
	"nuclight.org/citebot/internal/poll"
)

const (
	quizOptions = 4

	// Telegram limits
	maxPollQuestion = 300
	maxPollOption   = 100
)

// SendPoll sends a regular or quiz poll and reports its identifiers.
func (b *Bot) SendPoll(_ context.Context, chatID int64, req poll.Request) (*poll.Issued, error) {
	tp := &tele.Poll{
		Type:       tele.PollRegular,
		Question:   truncateRunes(req.Question, maxPollQuestion),
		Anonymous:  req.Anonymous,
		OpenPeriod: req.OpenPeriod,
	}
	if req.Quiz {
		tp.Type = tele.PollQuiz
		tp.CorrectOption = req.CorrectOption
	}
	for _, o := range req.Options {
		tp.AddOptions(truncateRunes(o, maxPollOption))
	}

	msg, err := b.bot.Send(chatRecipient(chatID), tp)
	if err != nil {
		return nil, err
	}
	if msg.Poll == nil {
		return nil, fmt.Errorf("sent message %d carries no poll", msg.ID)
	}
	return &poll.Issued{
		PollID:    msg.Poll.ID,
		MessageID: msg.ID,
		Snapshot:  snapshotOf(msg.Poll),
	}, nil
}

// handleBan starts a vote on banning the author of the replied message
func (b *Bot) handleBan(c tele.Context) error {
	return b.startModeration(c, poll.ActionBan, MsgFmtBanQuestion, MsgBanUsage)
}

// handleUnban starts a vote on lifting a ban
func (b *Bot) handleUnban(c tele.Context) error {
	return b.startModeration(c, poll.ActionUnban, MsgFmtUnbanQuestion, MsgUnbanUsage)
}

func (b *Bot) startModeration(c tele.Context, action poll.Action, question, usage string) error {
	reply := c.Message().ReplyTo
	if reply == nil || reply.Sender == nil {
		return UserErrorf("%s", usage)
	}
	target := reply.Sender
	if target.IsBot {
		return UserErrorf(MsgCannotBanBot)
	}

	b.logger.Info("command /"+string(action),
		"user_id", c.Sender().ID,
		"chat_id", c.Chat().ID,
		"target_id", target.ID,
	)

	ctx, cancel := handlerContext()
	defer cancel()

	name := userMention(target)
	req := poll.Request{
		Question:   fmt.Sprintf(question, name),
		Options:    []string{MsgPollYes, MsgPollNo},
		OpenPeriod: b.opts.PollDuration,
	}
	subject := poll.Subject{UserID: target.ID, UserName: name}
	if _, err := b.polls.Issue(ctx, c.Chat().ID, req, action, subject); err != nil {
		return WrapUserError(MsgFailedSendPoll, err)
	}
	return nil
}

// handleQuiz asks the chat who said a random citation
func (b *Bot) handleQuiz(c tele.Context) error {
	b.logger.Info("command /quiz", "user_id", c.Sender().ID, "chat_id", c.Chat().ID)

	ctx, cancel := handlerContext()
	defer cancel()

	cit, err := b.citations.Random(ctx)
	if errors.Is(err, citation.ErrNotFound) {
		return UserErrorf(MsgNoCitations)
	}
	if err != nil {
		return WrapUserError(MsgFailedGetCite, err)
	}
	authors, err := b.citations.Authors(ctx)
	if err != nil {
		return WrapUserError(MsgFailedGetCite, err)
	}

	options, correct, ok := quizChoices(cit.Who, authors, quizOptions, b.pick)
	if !ok {
		return UserErrorf(MsgNotEnoughAuthors)
	}

	req := poll.Request{
		Question:      MsgQuizQuestion + "\n\n" + cit.What,
		Options:       options,
		Quiz:          true,
		CorrectOption: correct,
		OpenPeriod:    b.opts.PollDuration,
	}
	subject := poll.Subject{CitationRow: cit.Row, CorrectOption: correct}
	if _, err := b.polls.Issue(ctx, c.Chat().ID, req, poll.ActionQuiz, subject); err != nil {
		return WrapUserError(MsgFailedSendPoll, err)
	}
	return nil
}

// quizChoices picks up to n answer options: the real author plus random
// others, shuffled. It reports the index of the real author and false when
// there are fewer than two distinct authors.
func quizChoices(who string, authors []string, n int, pick func(int) int) ([]string, int, bool) {
	others := make([]string, 0, len(authors))
	for _, a := range authors {
		if a != who {
			others = append(others, a)
		}
	}
	if len(others) == 0 {
		return nil, 0, false
	}

	for i := len(others) - 1; i > 0; i-- {
		j := pick(i + 1)
		others[i], others[j] = others[j], others[i]
	}
	if len(others) > n-1 {
		others = others[:n-1]
	}

	correct := pick(len(others) + 1)
	options := make([]string, 0, len(others)+1)
	options = append(options, others[:correct]...)
	options = append(options, who)
	options = append(options, others[correct:]...)
	return options, correct, true
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// RegisterPollActions registers what happens when each kind of poll closes.
func (b *Bot) RegisterPollActions() {
	b.polls.Handle(poll.ActionBan, b.onBanClosed)
	b.polls.Handle(poll.ActionUnban, b.onUnbanClosed)
	b.polls.Handle(poll.ActionQuiz, b.onQuizClosed)
}

func (b *Bot) onBanClosed(ctx context.Context, rec *poll.Record, met bool) error {
	if !met {
		return b.announce(rec, fmt.Sprintf(MsgFmtBanRejected, html.EscapeString(rec.Subject.UserName)))
	}
	if err := b.access.Ban(ctx, rec.Subject.UserID, rec.Subject.UserName); err != nil {
		return err
	}
	b.logger.Info("user banned by vote", "user_id", rec.Subject.UserID, "chat_id", rec.ChatID)
	return b.announce(rec, fmt.Sprintf(MsgFmtBanned, html.EscapeString(rec.Subject.UserName)))
}

func (b *Bot) onUnbanClosed(ctx context.Context, rec *poll.Record, met bool) error {
	if !met {
		return b.announce(rec, fmt.Sprintf(MsgFmtUnbanRejected, html.EscapeString(rec.Subject.UserName)))
	}
	if _, err := b.access.Unban(ctx, rec.Subject.UserID); err != nil {
		return err
	}
	b.logger.Info("user unbanned by vote", "user_id", rec.Subject.UserID, "chat_id", rec.ChatID)
	return b.announce(rec, fmt.Sprintf(MsgFmtUnbanned, html.EscapeString(rec.Subject.UserName)))
}

func (b *Bot) onQuizClosed(ctx context.Context, rec *poll.Record, met bool) error {
	answer := ""
	if i := rec.Subject.CorrectOption; i >= 0 && i < len(rec.Snapshot.Options) {
		answer = rec.Snapshot.Options[i].Text
	}

	data := &QuizResultData{Answer: answer, Guessed: met}
	cit, err := b.citations.Get(ctx, rec.Subject.CitationRow)
	switch {
	case err == nil:
		data.Citation = NewCitationView(cit, b.opts.Signature)
		if answer == "" {
			data.Answer = cit.Who
		}
	case !errors.Is(err, citation.ErrNotFound):
		return err
	}

	text, err := RenderQuizResult(data)
	if err != nil {
		return err
	}
	return b.announce(rec, text)
}

// announce replies to the poll message with the outcome.
func (b *Bot) announce(rec *poll.Record, text string) error {
	_, err := b.bot.Send(chatRecipient(rec.ChatID), text, &tele.SendOptions{
		ReplyTo:   MessageRef(rec.ChatID, rec.MessageID),
		ParseMode: tele.ModeHTML,
	})
	return err
}
