package bot

import (
	tele "gopkg.in/telebot.v4"

	"nuclight.org/citebot/internal/poll"
)

// RegisterHandlers installs handlers for non-command updates.
func (b *Bot) RegisterHandlers() {
	b.bot.Handle(tele.OnEdited, b.handleEdited)
	b.bot.Handle(&likeButton, b.handleLike, b.RejectBanned())
	b.bot.Handle(tele.OnPoll, b.handlePollUpdate)
}

// handleEdited applies edits of /cite messages to the citation they created.
// Edits of anything else are ignored.
func (b *Bot) handleEdited(c tele.Context) error {
	m := c.Message()
	if m == nil || m.Chat == nil || m.Text == "" {
		return nil
	}

	ctx, cancel := handlerContext()
	defer cancel()

	row, applied, err := b.citations.ApplyEdit(ctx, m.Chat.ID, m.ID, m.Text, SpansFromEntities(m.Text, m.Entities))
	if err != nil {
		return err
	}
	if applied {
		b.logger.Info("citation edited", "row", row, "chat_id", m.Chat.ID, "message_id", m.ID)
	}
	return nil
}

// handlePollUpdate records the latest tally of a poll the bot issued.
func (b *Bot) handlePollUpdate(c tele.Context) error {
	p := c.Poll()
	if p == nil {
		return nil
	}

	ctx, cancel := handlerContext()
	defer cancel()

	return b.polls.OnProgress(ctx, p.ID, snapshotOf(p))
}

func snapshotOf(p *tele.Poll) poll.Snapshot {
	s := poll.Snapshot{
		TotalVoters: p.VoterCount,
		Closed:      p.Closed,
		Options:     make([]poll.Option, 0, len(p.Options)),
	}
	for _, o := range p.Options {
		s.Options = append(s.Options, poll.Option{Text: o.Text, Votes: o.VoterCount})
	}
	return s
}
