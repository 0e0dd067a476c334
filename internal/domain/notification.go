package domain

import (
	"fmt"
	"strings"
)

// Channel selects how a charge notification is delivered.
type Channel string

const (
	ChannelSystem Channel = "system"
	ChannelEmail  Channel = "email"
	ChannelBoth   Channel = "both"
)

// ParseChannel validates a channel name. An empty value yields an empty channel
// so callers can fall back to their default.
func ParseChannel(raw string) (Channel, error) {
	switch ch := Channel(strings.ToLower(strings.TrimSpace(raw))); ch {
	case "", ChannelSystem, ChannelEmail, ChannelBoth:
		return ch, nil
	default:
		return "", &ValidationError{Field: "channel", Message: fmt.Sprintf("unknown channel %q", raw)}
	}
}
