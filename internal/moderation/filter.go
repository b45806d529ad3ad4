// Package moderation decides whether a chat message may be touched and how
// its text is redacted. Everything here is a pure function of the message,
// the current settings snapshot and a random source; talking to the chat
// platform is left to the caller.
package moderation

import (
	"strings"
	"time"

	"github.com/ciabot/redactor/internal/settings"
)

// IsEligible reports whether any moderation action may be taken on msg. All
// conditions must hold:
//
//   - moderation is not suspended (now is past the timeout expiration)
//   - the channel is not on the deny list
//   - the allow list is empty or contains the channel
//   - the text does not start with the bypass prefix
//   - the message carries no image attachment
//
// The deny list wins over the allow list. An empty bypass prefix disables the
// bypass rather than matching every message.
func IsEligible(msg Message, cfg settings.Configuration, now time.Time) bool {
	if cfg.InTimeout(now) {
		return false
	}
	if cfg.ChannelDenyList.Has(msg.ChannelID) {
		return false
	}
	if len(cfg.ChannelAllowList) > 0 && !cfg.ChannelAllowList.Has(msg.ChannelID) {
		return false
	}
	if cfg.BypassPrefix != "" && strings.HasPrefix(msg.Text, cfg.BypassPrefix) {
		return false
	}
	if msg.HasImage {
		return false
	}
	return true
}
