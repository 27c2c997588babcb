package bot

import (
	tele "gopkg.in/telebot.v4"
)

// splitPoller hands every payload of an update to the dispatcher separately.
// telebot dispatches an update by its first populated field and drops the rest.
type splitPoller struct {
	inner tele.Poller
}

func newSplitPoller(inner tele.Poller) *splitPoller {
	return &splitPoller{inner: inner}
}

func (p *splitPoller) Poll(b *tele.Bot, dest chan tele.Update, stop chan struct{}) {
	middle := make(chan tele.Update, 1)
	stopInner := make(chan struct{})
	done := make(chan struct{})

	go func() {
		p.inner.Poll(b, middle, stopInner)
		close(done)
	}()

	for {
		select {
		case <-stop:
			p.stopInner(middle, stopInner, done)
			return
		case u := <-middle:
			for _, part := range splitUpdate(u) {
				dest <- part
			}
		}
	}
}

// stopInner signals by sending rather than closing: the webhook poller closes
// its stop channel itself.
func (p *splitPoller) stopInner(middle chan tele.Update, stopInner, done chan struct{}) {
	for {
		select {
		case stopInner <- struct{}{}:
			<-done
			return
		case <-middle:
		case <-done:
			return
		}
	}
}

// splitUpdate returns one update per handled payload, in dispatch order.
// Updates with a single payload are returned unchanged.
func splitUpdate(u tele.Update) []tele.Update {
	var parts []tele.Update
	if u.Message != nil {
		parts = append(parts, tele.Update{ID: u.ID, Message: u.Message})
	}
	if u.EditedMessage != nil {
		parts = append(parts, tele.Update{ID: u.ID, EditedMessage: u.EditedMessage})
	}
	if u.Callback != nil {
		parts = append(parts, tele.Update{ID: u.ID, Callback: u.Callback})
	}
	if u.Poll != nil {
		parts = append(parts, tele.Update{ID: u.ID, Poll: u.Poll})
	}
	if len(parts) <= 1 {
		return []tele.Update{u}
	}
	return parts
}
