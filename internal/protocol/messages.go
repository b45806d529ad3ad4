// Package protocol defines the JSON messages exchanged with the gateway
// bridge, the process that holds the chat platform connection. Inbound events
// follow a consistent envelope format with a type discriminator; platform
// calls are request-reply pairs on their own subjects.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Bridge -> Bot event types.
const (
	TypeMessageCreate = "message_create"
	TypeCommand       = "command"
)

// Bot -> Bridge reply types.
const (
	TypeCommandReply  = "command_reply"
	TypePlatformReply = "platform_reply"
	TypeError         = "error"
)

// ---------------------------------------------------------------------------
// Envelope is used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It keeps the full
// raw bytes and extracts only the "type" field.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Bridge -> Bot events
// ---------------------------------------------------------------------------

// Author identifies who sent a message.
type Author struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"` // server nickname or global name
	Bot         bool   `json:"bot"`
}

// Name returns the display name, falling back to the username.
func (a Author) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}

// Attachment is a file attached to a message.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// IsImage reports whether the attachment's content type is an image type.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(a.ContentType), "image/")
}

// MessageCreateEvent is published by the bridge for every new message in a
// channel the bot can read.
type MessageCreateEvent struct {
	Type        string       `json:"type"`
	ID          string       `json:"id"`
	ChannelID   string       `json:"channel_id"`
	GuildID     string       `json:"guild_id,omitempty"`
	Content     string       `json:"content"`
	Author      Author       `json:"author"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// HasImage reports whether any attachment is an image.
func (e MessageCreateEvent) HasImage() bool {
	for _, a := range e.Attachments {
		if a.IsImage() {
			return true
		}
	}
	return false
}

// Member describes the invoking user of a command together with the guild
// roles and permissions the bridge resolved for them.
type Member struct {
	ID             string   `json:"id"`
	Username       string   `json:"username"`
	Roles          []string `json:"roles,omitempty"`
	ManageMessages bool     `json:"manage_messages"`
	Administrator  bool     `json:"administrator"`
}

// CommandEvent is sent by the bridge as a request when a user invokes one of
// the bot's commands. The bot answers with a CommandReply.
type CommandEvent struct {
	Type      string   `json:"type"`
	ID        string   `json:"id"`
	ChannelID string   `json:"channel_id"`
	Command   string   `json:"command"`
	Args      []string `json:"args,omitempty"`
	Member    Member   `json:"member"`
}

// ---------------------------------------------------------------------------
// Bot -> Bridge replies and platform requests
// ---------------------------------------------------------------------------

// CommandReply carries the text shown to the invoking user.
type CommandReply struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Content   string `json:"content"`
	Ephemeral bool   `json:"ephemeral,omitempty"`
}

// DeleteMessageRequest asks the bridge to delete a message.
type DeleteMessageRequest struct {
	RequestID string `json:"request_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// SendMessageRequest asks the bridge to post a message.
type SendMessageRequest struct {
	RequestID string `json:"request_id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

// AddReactionRequest asks the bridge to add an emoji reaction to a message.
type AddReactionRequest struct {
	RequestID string `json:"request_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// PlatformReply is the bridge's answer to any platform request.
type PlatformReply struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	OK        bool   `json:"ok"`
	MessageID string `json:"message_id,omitempty"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Err converts a failed reply into an error. It returns nil when OK is set.
func (r PlatformReply) Err() error {
	if r.OK {
		return nil
	}
	if r.Code != "" {
		return fmt.Errorf("protocol: platform error %s: %s", r.Code, r.Error)
	}
	return fmt.Errorf("protocol: platform error: %s", r.Error)
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseEvent parses raw bytes from the bridge into a typed event. It returns
// the type string, the decoded struct (MessageCreateEvent or CommandEvent),
// and any error. Unknown types are an error.
func ParseEvent(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeMessageCreate:
		var m MessageCreateEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeCommand:
		var m CommandEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown event type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// Encode marshals payload to JSON and sets its "type" key to msgType.
func Encode(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal message: %w", err)
	}
	return out, nil
}

// DecodePlatformReply parses a bridge reply to a platform request.
func DecodePlatformReply(data []byte) (PlatformReply, error) {
	var r PlatformReply
	if err := json.Unmarshal(data, &r); err != nil {
		return PlatformReply{}, fmt.Errorf("protocol: failed to decode platform reply: %w", err)
	}
	return r, nil
}
