// Package messaging provides a NATS client wrapper for the bot's traffic with
// the gateway bridge. The bridge publishes inbound chat messages and command
// invocations; the bot answers commands and performs platform actions
// (delete, send, react) through request-reply subjects.
package messaging

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subjects shared with the gateway bridge.
const (
	SubjectMessageCreate  = "gateway.message"         // bridge -> bot, fire and forget
	SubjectCommand        = "gateway.command"         // bridge -> bot, request-reply
	SubjectDeleteMessage  = "platform.message.delete" // bot -> bridge, request-reply
	SubjectSendMessage    = "platform.message.send"   // bot -> bridge, request-reply
	SubjectAddReaction    = "platform.reaction.add"   // bot -> bridge, request-reply
	DefaultQueueGroup     = "ciabot"
)

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
	QueueGroup    string        // queue group for inbound subjects; empty disables
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "ciabot",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
		QueueGroup:    DefaultQueueGroup,
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Request publishes data on subject and waits for a single reply, bounded by
// ctx. The context must carry a deadline or be cancellable.
func (c *NATSClient) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	msg, err := c.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("nats request %s: %w", subject, err)
	}
	return msg.Data, nil
}

// Subscribe registers a handler for the given subject and stores the
// subscription internally for later cleanup. A non-empty queue joins the
// subscription to that queue group so replicas share the load.
func (c *NATSClient) Subscribe(subject, queue string, handler func(msg *nats.Msg)) error {
	var (
		sub *nats.Subscription
		err error
	)
	if queue != "" {
		sub, err = c.conn.QueueSubscribe(subject, queue, handler)
	} else {
		sub, err = c.conn.Subscribe(subject, handler)
	}
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	if old, ok := c.subs[subject]; ok {
		_ = old.Unsubscribe()
	}
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// SubscribeMessages subscribes to inbound chat message events and passes the
// raw payload to handler.
func (c *NATSClient) SubscribeMessages(queue string, handler func(data []byte)) error {
	return c.Subscribe(SubjectMessageCreate, queue, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// SubscribeCommands subscribes to command invocations. The bytes returned by
// handler are sent back as the reply; a nil result sends no reply.
func (c *NATSClient) SubscribeCommands(queue string, handler func(data []byte) []byte) error {
	return c.Subscribe(SubjectCommand, queue, func(msg *nats.Msg) {
		reply := handler(msg.Data)
		if reply == nil || msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			log.Printf("[nats] respond on %s: %v", msg.Subject, err)
		}
	})
}

// UnsubscribeMessages stops receiving chat message events.
func (c *NATSClient) UnsubscribeMessages() error {
	return c.unsubscribe(SubjectMessageCreate)
}

// UnsubscribeCommands stops receiving command invocations.
func (c *NATSClient) UnsubscribeCommands() error {
	return c.unsubscribe(SubjectCommand)
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}

// unsubscribe removes and unsubscribes from a specific subject.
func (c *NATSClient) unsubscribe(subject string) error {
	c.mu.Lock()
	sub, ok := c.subs[subject]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for subject %s", subject)
	}
	delete(c.subs, subject)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", subject, err)
	}
	return nil
}
