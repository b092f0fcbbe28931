package model

import "fmt"

// ChannelID names a single logical sensor series. Local sensor names are
// restricted to [0-9A-Za-z_]. Ids that went through client-side renaming
// additionally carry the configured prefix, which may contain '.'.
type ChannelID string

// ParseChannelID validates a local channel name.
func ParseChannelID(s string) (ChannelID, error) {
	if s == "" {
		return "", &InvalidFormatError{Value: s}
	}
	for _, c := range s {
		if !isChannelChar(c) {
			return "", &InvalidFormatError{Value: s}
		}
	}
	return ChannelID(s), nil
}

// ParseWireChannelID validates a channel id as it appears on the wire,
// i.e. a local name optionally carrying a dotted prefix.
func ParseWireChannelID(s string) (ChannelID, error) {
	if s == "" {
		return "", &InvalidFormatError{Value: s}
	}
	for _, c := range s {
		if !isChannelChar(c) && c != '.' {
			return "", &InvalidFormatError{Value: s}
		}
	}
	return ChannelID(s), nil
}

// UnmarshalText validates ids arriving over the wire, which makes JSON
// map keys of ChannelID reject malformed ids during decoding.
func (c *ChannelID) UnmarshalText(text []byte) error {
	id, err := ParseWireChannelID(string(text))
	if err != nil {
		return err
	}
	*c = id
	return nil
}

func isChannelChar(c rune) bool {
	return c >= '0' && c <= '9' ||
		c >= 'A' && c <= 'Z' ||
		c >= 'a' && c <= 'z' ||
		c == '_'
}

// InvalidFormatError reports a channel name containing forbidden characters.
type InvalidFormatError struct {
	Value string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("channel id may contain only 0-9, A-Z, a-z and _, got %q", e.Value)
}
