package telegram

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"thermoline/internal/model"
)

const pollTimeout = 30 * time.Second

// RunPoll long-polls the Bot API for chat messages and dispatches
// commands. Poll failures are logged and retried; non-message updates are
// logged and skipped. Blocks until ctx is cancelled.
func (r *Recipient) RunPoll(ctx context.Context) {
	var offset int64
	for ctx.Err() == nil {
		updates, err := r.api.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[telegram] poll error: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil {
				log.Printf("[telegram] skipping non-message update %d", u.UpdateID)
				continue
			}
			reply := r.handleMessage(ctx, u.Message)
			if reply == "" {
				continue
			}
			if err := r.api.SendMessage(ctx, u.Message.Chat.ID, reply); err != nil {
				log.Printf("[telegram] error replying to chat %s: %v", u.Message.Chat.ID, err)
			}
		}
	}
}

// handleMessage runs one chat message through the command grammar and
// returns the reply text.
func (r *Recipient) handleMessage(ctx context.Context, msg *Message) string {
	if msg.Text == "" {
		return "Only text commands are supported"
	}
	cmd, err := parseCommand(msg.Text)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	switch cmd.name {
	case cmdHelp, cmdStart:
		return helpText
	case cmdDigest:
		if cmd.arg == "" {
			return r.summaryDigest()
		}
		return r.channelDigest(cmd.arg)
	case cmdSubscribe:
		if cmd.arg == "" {
			return r.suggestSubscriptions(msg.Chat.ID)
		}
		return r.subscribe(ctx, msg.Chat.ID, cmd.arg)
	case cmdUnsubscribe:
		if cmd.arg == "" {
			return r.listSubscriptions(msg.Chat.ID)
		}
		return r.unsubscribe(ctx, msg.Chat.ID, cmd.arg)
	}
	return fmt.Sprintf("Error: unknown command /%s", cmd.name)
}

// summaryDigest renders one line per known channel.
func (r *Recipient) summaryDigest() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.state) == 0 {
		return "No channels yet."
	}
	var lines []string
	for ch, st := range r.state {
		status := "offline"
		if st.Online {
			status = "online"
		}
		if last, ok := st.Values.Last(); ok {
			lines = append(lines, fmt.Sprintf("`%s`: %.1f °C (%s)", ch, last.Value, status))
		} else {
			lines = append(lines, fmt.Sprintf("`%s`: never seen", ch))
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// channelDigest renders the full statistics block for one channel.
func (r *Recipient) channelDigest(arg string) string {
	ch, err := model.ParseWireChannelID(arg)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.state[ch]
	if !ok {
		return fmt.Sprintf("Error: unknown channel `%s`", ch)
	}
	return fmt.Sprintf("`%s`:\n%s", ch, st.Values.Statistics())
}

// fullDigest renders the statistics blocks of all channels.
func (r *Recipient) fullDigest() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]model.ChannelID, 0, len(r.state))
	for ch := range r.state {
		ids = append(ids, ch)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var b strings.Builder
	for _, ch := range ids {
		fmt.Fprintf(&b, "`%s`:\n%s", ch, r.state[ch].Values.Statistics())
	}
	if b.Len() == 0 {
		return "No channels yet."
	}
	return b.String()
}

func (r *Recipient) subscribe(ctx context.Context, id ChatID, arg string) string {
	ch, err := model.ParseWireChannelID(arg)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	already := false
	if err := r.settings.Update(ctx, func(s *Settings) {
		chat := s.chat(id)
		if _, ok := chat.Subscriptions[ch]; ok {
			already = true
			return
		}
		chat.Subscriptions[ch] = DefaultSubscription()
	}); err != nil {
		log.Printf("[telegram] error persisting subscription: %v", err)
	}
	if already {
		return fmt.Sprintf("You are already subscribed to `%s`.", ch)
	}
	return fmt.Sprintf("You have successfully subscribed to `%s`.", ch)
}

func (r *Recipient) unsubscribe(ctx context.Context, id ChatID, arg string) string {
	ch, err := model.ParseWireChannelID(arg)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	present := false
	if err := r.settings.Update(ctx, func(s *Settings) {
		chat := s.chat(id)
		if _, ok := chat.Subscriptions[ch]; ok {
			present = true
			delete(chat.Subscriptions, ch)
		}
	}); err != nil {
		log.Printf("[telegram] error persisting subscription: %v", err)
	}
	if present {
		return fmt.Sprintf("You have unsubscribed from `%s`.", ch)
	}
	return fmt.Sprintf("You were not subscribed to `%s`.", ch)
}

// suggestSubscriptions lists known channels the chat is not yet
// subscribed to, as ready-to-tap commands.
func (r *Recipient) suggestSubscriptions(id ChatID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var lines []string
	r.settings.View(func(s *Settings) {
		var subs map[model.ChannelID]ChannelSubscription
		if chat, ok := s.Chats[id]; ok && chat != nil {
			subs = chat.Subscriptions
		}
		for ch := range r.state {
			if _, ok := subs[ch]; !ok {
				lines = append(lines, fmt.Sprintf("/subscribe_%s", ch))
			}
		}
	})
	if len(lines) == 0 {
		return "No channels available to subscribe."
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// listSubscriptions lists the chat's subscriptions as ready-to-tap
// unsubscribe commands.
func (r *Recipient) listSubscriptions(id ChatID) string {
	var lines []string
	r.settings.View(func(s *Settings) {
		if chat, ok := s.Chats[id]; ok && chat != nil {
			for ch := range chat.Subscriptions {
				lines = append(lines, fmt.Sprintf("/unsubscribe_%s", ch))
			}
		}
	})
	if len(lines) == 0 {
		return "You have no subscriptions."
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
