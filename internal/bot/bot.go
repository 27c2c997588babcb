package bot

import (
	"log/slog"
	"math/rand/v2"
	"time"

	tele "gopkg.in/telebot.v4"

	"nuclight.org/citebot/internal/access"
	"nuclight.org/citebot/internal/citation"
	"nuclight.org/citebot/internal/poll"
)

type Options struct {
	Token            string
	Signature        string
	PollDuration     int // seconds
	WebhookPublicURL string
	WebhookListen    string
}

type Bot struct {
	bot       *tele.Bot
	citations *citation.Service
	polls     *poll.Service
	access    *access.Service
	opts      Options
	logger    *slog.Logger
	pick      func(n int) int
}

func New(opts Options, logger *slog.Logger) (*Bot, error) {
	pref := tele.Settings{
		Token:  opts.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			logger.Error("unhandled update error", "error", err)
		},
	}
	if opts.WebhookPublicURL != "" {
		pref.Poller = &tele.Webhook{
			Listen:         opts.WebhookListen,
			AllowedUpdates: []string{"message", "edited_message", "callback_query", "poll"},
			Endpoint:       &tele.WebhookEndpoint{PublicURL: opts.WebhookPublicURL},
		}
	}

	pref.Poller = newSplitPoller(pref.Poller)

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	return &Bot{
		bot:    b,
		opts:   opts,
		logger: logger,
		pick:   rand.IntN,
	}, nil
}

// Services are the domain services the bot dispatches updates to.
type Services struct {
	Citations *citation.Service
	Polls     *poll.Service
	Access    *access.Service
}

// Attach wires the services, registers poll close actions and installs all
// update handlers. Call once before Start.
func (b *Bot) Attach(svc Services) {
	b.citations = svc.Citations
	b.polls = svc.Polls
	b.access = svc.Access

	b.RegisterPollActions()
	b.RegisterCommands()
	b.RegisterHandlers()
}

func (b *Bot) Start() {
	b.logger.Info("bot started", "username", b.bot.Me.Username, "webhook", b.opts.WebhookPublicURL != "")
	b.bot.Start()
}

func (b *Bot) Stop() {
	b.bot.Stop()
}

// success acknowledges a stored citation with a random short reply.
func (b *Bot) success(c tele.Context) error {
	return c.Send(successVariants[b.pick(len(successVariants))])
}
