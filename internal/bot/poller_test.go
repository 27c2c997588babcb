package bot

import (
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestSplitUpdate(t *testing.T) {
	msg := &tele.Message{ID: 1, Text: "/cite a (c) b"}
	pollPayload := &tele.Poll{ID: "p1"}

	t.Run("single payload is untouched", func(t *testing.T) {
		u := tele.Update{ID: 9, Message: msg, ChannelPost: msg}
		parts := splitUpdate(u)
		if len(parts) != 1 || parts[0].ChannelPost != msg {
			t.Errorf("parts = %+v", parts)
		}
	})

	t.Run("message and poll become two updates", func(t *testing.T) {
		parts := splitUpdate(tele.Update{ID: 9, Message: msg, Poll: pollPayload})
		if len(parts) != 2 {
			t.Fatalf("len = %d, want 2", len(parts))
		}
		if parts[0].Message != msg || parts[0].Poll != nil {
			t.Errorf("first part = %+v", parts[0])
		}
		if parts[1].Poll != pollPayload || parts[1].Message != nil {
			t.Errorf("second part = %+v", parts[1])
		}
		for _, p := range parts {
			if p.ID != 9 {
				t.Errorf("update id = %d, want 9", p.ID)
			}
		}
	})

	t.Run("edit and callback keep dispatch order", func(t *testing.T) {
		cb := &tele.Callback{ID: "c"}
		parts := splitUpdate(tele.Update{ID: 1, Callback: cb, EditedMessage: msg})
		if len(parts) != 2 || parts[0].EditedMessage != msg || parts[1].Callback != cb {
			t.Errorf("parts = %+v", parts)
		}
	})
}

// scriptedPoller emits its updates and then waits to be stopped, closing the
// stop channel like the webhook poller does.
type scriptedPoller struct {
	updates []tele.Update
}

func (p *scriptedPoller) Poll(b *tele.Bot, dest chan tele.Update, stop chan struct{}) {
	for _, u := range p.updates {
		dest <- u
	}
	<-stop
	close(stop)
}

func TestSplitPoller_Poll(t *testing.T) {
	inner := &scriptedPoller{updates: []tele.Update{
		{ID: 1, Message: &tele.Message{ID: 10}, Poll: &tele.Poll{ID: "p"}},
		{ID: 2, Callback: &tele.Callback{ID: "c"}},
	}}

	dest := make(chan tele.Update, 10)
	stop := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		newSplitPoller(inner).Poll(nil, dest, stop)
		close(finished)
	}()

	var got []tele.Update
	timeout := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case u := <-dest:
			got = append(got, u)
		case <-timeout:
			t.Fatalf("got %d updates, want 3", len(got))
		}
	}
	if got[0].Message == nil || got[1].Poll == nil || got[2].Callback == nil {
		t.Errorf("unexpected updates: %+v", got)
	}

	close(stop)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}
