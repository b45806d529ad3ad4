package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ciabot/redactor/internal/protocol"
)

// Requester sends a request and waits for one reply. *NATSClient satisfies it.
type Requester interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
}

// Platform performs chat platform actions by asking the gateway bridge over
// request-reply. Each call is bounded by the configured timeout in addition
// to the caller's context.
type Platform struct {
	r       Requester
	timeout time.Duration
}

// NewPlatform returns a Platform issuing requests through r. A non-positive
// timeout defaults to five seconds.
func NewPlatform(r Requester, timeout time.Duration) *Platform {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Platform{r: r, timeout: timeout}
}

// DeleteMessage removes a message from a channel.
func (p *Platform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	_, err := p.call(ctx, SubjectDeleteMessage, protocol.DeleteMessageRequest{
		RequestID: uuid.NewString(),
		ChannelID: channelID,
		MessageID: messageID,
	})
	if err != nil {
		return fmt.Errorf("platform: delete message %s: %w", messageID, err)
	}
	return nil
}

// SendMessage posts text to a channel.
func (p *Platform) SendMessage(ctx context.Context, channelID, text string) error {
	_, err := p.call(ctx, SubjectSendMessage, protocol.SendMessageRequest{
		RequestID: uuid.NewString(),
		ChannelID: channelID,
		Content:   text,
	})
	if err != nil {
		return fmt.Errorf("platform: send message to %s: %w", channelID, err)
	}
	return nil
}

// AddReaction adds an emoji reaction to a message.
func (p *Platform) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	_, err := p.call(ctx, SubjectAddReaction, protocol.AddReactionRequest{
		RequestID: uuid.NewString(),
		ChannelID: channelID,
		MessageID: messageID,
		Emoji:     emoji,
	})
	if err != nil {
		return fmt.Errorf("platform: add reaction to %s: %w", messageID, err)
	}
	return nil
}

func (p *Platform) call(ctx context.Context, subject string, req interface{}) (protocol.PlatformReply, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return protocol.PlatformReply{}, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.r.Request(ctx, subject, data)
	if err != nil {
		return protocol.PlatformReply{}, err
	}

	reply, err := protocol.DecodePlatformReply(raw)
	if err != nil {
		return protocol.PlatformReply{}, err
	}
	return reply, reply.Err()
}
