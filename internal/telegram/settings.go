package telegram

import (
	"time"

	"thermoline/internal/model"
)

// SettingsKey is the storage key the serialized Settings live under.
// All other keys of the backing storage are reserved.
const SettingsKey = "telegram-state"

// Range is an inclusive [Low, High] interval of channel values.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether other lies fully inside r.
func (r Range) Contains(other Range) bool {
	return r.Low <= other.Low && other.High <= r.High
}

// Shrink narrows the range symmetrically by h on both ends, collapsing to
// the midpoint when the range is narrower than 2h. This is the recovery
// window that prevents alert flapping.
func (r Range) Shrink(h float64) Range {
	if r.High-r.Low < 2*h {
		mid := (r.Low + r.High) / 2
		return Range{Low: mid, High: mid}
	}
	return Range{Low: r.Low + h, High: r.High - h}
}

// ChannelSubscription is one chat's alerting state for one channel.
// IsBad latches after an out-of-range alert until the hysteresis-narrowed
// range contains the channel again.
type ChannelSubscription struct {
	NormalRange Range `json:"normal_range"`
	IsBad       bool  `json:"is_bad"`
}

// DefaultSubscription is what /subscribe installs.
func DefaultSubscription() ChannelSubscription {
	return ChannelSubscription{NormalRange: Range{Low: 30, High: 80}}
}

// Chat holds one chat's persisted subscriptions.
type Chat struct {
	Subscriptions map[model.ChannelID]ChannelSubscription `json:"subscriptions"`
}

// CommonSettings apply to all chats.
type CommonSettings struct {
	// OfflineTimeoutSec is the silence after which a channel is declared
	// offline, in seconds.
	OfflineTimeoutSec float64 `json:"offline_timeout"`
	// Hysteresis is the symmetric shrink applied before declaring
	// recovery.
	Hysteresis float64 `json:"hysteresis"`
}

func (c CommonSettings) OfflineTimeout() time.Duration {
	return time.Duration(c.OfflineTimeoutSec * float64(time.Second))
}

// Settings is the persisted state of the alert engine, stored as one
// serialized blob under SettingsKey.
type Settings struct {
	Common CommonSettings   `json:"common"`
	Chats  map[ChatID]*Chat `json:"chats"`
}

// DefaultSettings returns the state used on a missing or undecodable blob.
func DefaultSettings() Settings {
	return Settings{
		Common: CommonSettings{OfflineTimeoutSec: 120, Hysteresis: 5},
		Chats:  make(map[ChatID]*Chat),
	}
}

func (s *Settings) chat(id ChatID) *Chat {
	if s.Chats == nil {
		s.Chats = make(map[ChatID]*Chat)
	}
	c, ok := s.Chats[id]
	if !ok {
		c = &Chat{Subscriptions: make(map[model.ChannelID]ChannelSubscription)}
		s.Chats[id] = c
	}
	if c.Subscriptions == nil {
		c.Subscriptions = make(map[model.ChannelID]ChannelSubscription)
	}
	return c
}

// subscribers returns the chats subscribed to the given channel.
func (s *Settings) subscribers(ch model.ChannelID) []ChatID {
	var chats []ChatID
	for id, chat := range s.Chats {
		if chat == nil {
			continue
		}
		if _, ok := chat.Subscriptions[ch]; ok {
			chats = append(chats, id)
		}
	}
	return chats
}
