package moderation

import (
	"strings"
	"time"
)

// Message is the read-only view of an inbound chat message.
type Message struct {
	ID          string
	ChannelID   string
	AuthorID    string
	AuthorName  string
	AuthorIsBot bool
	Text        string
	HasImage    bool
	Timestamp   time.Time
}

// Mode identifies which selection strategy produced an Outcome.
type Mode string

const (
	ModeNone    Mode = ""
	ModeTrigger Mode = "trigger" // a trigger word was present
	ModeAmbient Mode = "ambient" // the message was picked at random
)

// Outcome is the result of running the selector over a message.
type Outcome struct {
	Tokens   []string // tokens after replacement
	Redacted []int    // indices of replaced tokens, ascending
	Mode     Mode
	Changed  bool
}

// Text rejoins the tokens with single spaces.
func (o Outcome) Text() string {
	return strings.Join(o.Tokens, " ")
}
