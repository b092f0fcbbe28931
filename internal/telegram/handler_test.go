package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(chat ChatID, text string) *Message {
	return &Message{Chat: Peer{ID: chat}, Text: text}
}

func TestHandleMessage_Help(t *testing.T) {
	r, _, _ := testEngine(t)
	ctx := context.Background()
	assert.Equal(t, helpText, r.handleMessage(ctx, message(1, "/help")))
	assert.Equal(t, helpText, r.handleMessage(ctx, message(1, "/start")))
}

func TestHandleMessage_NonText(t *testing.T) {
	r, _, _ := testEngine(t)
	reply := r.handleMessage(context.Background(), message(1, ""))
	assert.Equal(t, "Only text commands are supported", reply)
}

func TestHandleMessage_ParseError(t *testing.T) {
	r, _, _ := testEngine(t)
	reply := r.handleMessage(context.Background(), message(1, "/bogus"))
	assert.Equal(t, "Error: unknown command /bogus", reply)
}

func TestHandleMessage_SummaryDigest(t *testing.T) {
	r, _, _ := testEngine(t)
	ctx := context.Background()

	assert.Equal(t, "No channels yet.", r.handleMessage(ctx, message(1, "/digest")))

	r.Update(ctx, batch("boiler", 100, 50))
	r.Update(ctx, batch("attic", 200, 21.5))

	reply := r.handleMessage(ctx, message(1, "/digest"))
	assert.Equal(t, "`attic`: 21.5 °C (online)\n`boiler`: 50.0 °C (online)", reply)
}

func TestHandleMessage_ChannelDigest(t *testing.T) {
	r, _, _ := testEngine(t)
	ctx := context.Background()
	r.Update(ctx, batch("boiler", 1700000000, 50, 60))

	reply := r.handleMessage(ctx, message(1, "/digest boiler"))
	assert.Contains(t, reply, "`boiler`:")
	assert.Contains(t, reply, "min: 50.0 °C")
	assert.Contains(t, reply, "max: 60.0 °C")

	reply = r.handleMessage(ctx, message(1, "/digest_cellar"))
	assert.Equal(t, "Error: unknown channel `cellar`", reply)

	reply = r.handleMessage(ctx, message(1, "/digest bad-name"))
	assert.Contains(t, reply, "Error:")
}

func TestHandleMessage_SubscribeIdempotent(t *testing.T) {
	r, _, _ := testEngine(t)
	ctx := context.Background()

	reply := r.handleMessage(ctx, message(2, "/subscribe attic"))
	assert.Equal(t, "You have successfully subscribed to `attic`.", reply)
	reply = r.handleMessage(ctx, message(2, "/subscribe_attic"))
	assert.Equal(t, "You are already subscribed to `attic`.", reply)

	r.settings.View(func(s *Settings) {
		sub := s.Chats[2].Subscriptions["attic"]
		assert.Equal(t, DefaultSubscription(), sub)
	})
}

func TestHandleMessage_Unsubscribe(t *testing.T) {
	r, _, _ := testEngine(t)
	ctx := context.Background()

	reply := r.handleMessage(ctx, message(1, "/unsubscribe boiler"))
	assert.Equal(t, "You have unsubscribed from `boiler`.", reply)
	reply = r.handleMessage(ctx, message(1, "/unsubscribe boiler"))
	assert.Equal(t, "You were not subscribed to `boiler`.", reply)
}

func TestHandleMessage_SuggestSubscriptions(t *testing.T) {
	r, _, _ := testEngine(t)
	ctx := context.Background()
	r.Update(ctx, batch("boiler", 100, 50))
	r.Update(ctx, batch("attic", 200, 21))

	// Chat 1 is already subscribed to boiler; only attic is suggested.
	assert.Equal(t, "/subscribe_attic", r.handleMessage(ctx, message(1, "/subscribe")))

	// A fresh chat sees everything.
	assert.Equal(t, "/subscribe_attic\n/subscribe_boiler", r.handleMessage(ctx, message(9, "/subscribe")))
}

func TestHandleMessage_ListSubscriptions(t *testing.T) {
	r, _, _ := testEngine(t)
	ctx := context.Background()

	assert.Equal(t, "/unsubscribe_boiler", r.handleMessage(ctx, message(1, "/unsubscribe")))
	assert.Equal(t, "You have no subscriptions.", r.handleMessage(ctx, message(9, "/unsubscribe")))
}

func TestRunPoll_DispatchesAndAdvancesOffset(t *testing.T) {
	r, api, _ := testEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api.updates <- []Update{
		{UpdateID: 10, Message: message(1, "/help")},
		{UpdateID: 11}, // non-message update, skipped
	}
	// A replay below the advanced offset is filtered by the fake, like
	// the real API does; the fresh update still goes through.
	api.updates <- []Update{
		{UpdateID: 10, Message: message(1, "/help")},
		{UpdateID: 12, Message: message(2, "/subscribe attic")},
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.RunPoll(ctx)
	}()

	require.Eventually(t, func() bool {
		return len(api.messages()) >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	sent := api.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, sentMessage{1, helpText}, sent[0])
	assert.Equal(t, sentMessage{2, "You have successfully subscribed to `attic`."}, sent[1])
}
