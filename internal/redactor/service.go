// Package redactor runs the message pipeline: it receives chat messages from
// the gateway bridge, decides whether to react to and redact each one, and
// replaces redacted messages on the platform.
package redactor

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ciabot/redactor/internal/audit"
	"github.com/ciabot/redactor/internal/messaging"
	"github.com/ciabot/redactor/internal/metrics"
	"github.com/ciabot/redactor/internal/moderation"
	"github.com/ciabot/redactor/internal/protocol"
	"github.com/ciabot/redactor/internal/settings"
)

const defaultMaxInFlight = 32

// Disposition is what the pipeline did with a message.
type Disposition string

const (
	Skipped    Disposition = "skipped"    // bot author, empty text, or outside the debug channel
	Ineligible Disposition = "ineligible" // rejected by the eligibility filter
	Passed     Disposition = "passed"     // eligible but not selected for redaction
	Redacted   Disposition = "redacted"   // replacement attempted
)

// Snapshotter hands out consistent copies of the configuration.
// *settings.Store satisfies it.
type Snapshotter interface {
	Snapshot() settings.Configuration
}

// Auditor records replacement attempts. *audit.Store satisfies it.
type Auditor interface {
	RecordReplacement(ctx context.Context, r audit.Replacement) (uuid.UUID, error)
}

// Subscriber delivers raw message events. *messaging.NATSClient satisfies it.
type Subscriber interface {
	SubscribeMessages(queue string, handler func(data []byte)) error
	UnsubscribeMessages() error
}

// Options configures a Service. Settings and Platform are required.
type Options struct {
	Settings Snapshotter
	Platform Platform
	Selector *moderation.Selector // nil uses the process-wide random source
	Notifier *Notifier            // nil disables debug-channel notices
	Auditor  Auditor              // nil disables the audit log

	// Production processes every channel. Otherwise only messages in the
	// configured debug channel are handled.
	Production bool

	// MaxInFlight bounds the number of messages handled concurrently.
	MaxInFlight int

	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// Service is the message pipeline.
type Service struct {
	settings   Snapshotter
	platform   Platform
	selector   *moderation.Selector
	replacer   *Replacer
	notifier   *Notifier
	auditor    Auditor
	production bool
	now        func() time.Time

	sub    Subscriber
	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewService creates a message pipeline from opts.
func NewService(opts Options) *Service {
	if opts.Selector == nil {
		opts.Selector = moderation.NewSelector(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = defaultMaxInFlight
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		settings:   opts.Settings,
		platform:   opts.Platform,
		selector:   opts.Selector,
		replacer:   NewReplacer(opts.Platform),
		notifier:   opts.Notifier,
		auditor:    opts.Auditor,
		production: opts.Production,
		now:        opts.Now,
		ctx:        ctx,
		cancel:     cancel,
		sem:        make(chan struct{}, opts.MaxInFlight),
	}
}

// Start subscribes to message events. Each event is handled on its own
// goroutine, at most MaxInFlight at a time.
func (s *Service) Start(sub Subscriber, queue string) error {
	if err := sub.SubscribeMessages(queue, s.handleEvent); err != nil {
		return err
	}
	s.sub = sub
	log.Println("[redactor] service started")
	return nil
}

// Stop unsubscribes and waits for in-flight messages to finish. Replacements
// already under way run to completion.
func (s *Service) Stop() {
	if s.sub != nil {
		if err := s.sub.UnsubscribeMessages(); err != nil {
			log.Printf("[redactor] unsubscribe: %v", err)
		}
	}
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	log.Println("[redactor] service stopped")
}

func (s *Service) handleEvent(data []byte) {
	msgType, payload, err := protocol.ParseEvent(data)
	if err != nil {
		log.Printf("[redactor] dropping event: %v", err)
		return
	}
	ev, ok := payload.(protocol.MessageCreateEvent)
	if !ok {
		log.Printf("[redactor] unexpected event type=%q on message subject", msgType)
		return
	}

	select {
	case s.sem <- struct{}{}:
	case <-s.ctx.Done():
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		<-s.sem
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer func() {
			<-s.sem
			s.wg.Done()
		}()
		_, _ = s.HandleMessage(s.ctx, MessageFromEvent(ev))
	}()
}

// MessageFromEvent converts a bridge event into the pipeline's message view.
func MessageFromEvent(ev protocol.MessageCreateEvent) moderation.Message {
	return moderation.Message{
		ID:          ev.ID,
		ChannelID:   ev.ChannelID,
		AuthorID:    ev.Author.ID,
		AuthorName:  ev.Author.Name(),
		AuthorIsBot: ev.Author.Bot,
		Text:        ev.Content,
		HasImage:    ev.HasImage(),
		Timestamp:   ev.Timestamp,
	}
}

// HandleMessage runs one message through the pipeline against a single
// configuration snapshot. The error is non-nil only when a replacement step
// failed, and is then a *ReplacementError; the failure has already been
// logged and reported to the debug channel.
func (s *Service) HandleMessage(ctx context.Context, msg moderation.Message) (Disposition, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineLatency.Observe(time.Since(start).Seconds())
	}()

	cfg := s.settings.Snapshot()

	if msg.AuthorIsBot || strings.TrimSpace(msg.Text) == "" {
		return s.count(Skipped), nil
	}
	if !s.production && msg.ChannelID != cfg.DebugChannelID {
		return s.count(Skipped), nil
	}
	if !moderation.IsEligible(msg, cfg, s.now()) {
		return s.count(Ineligible), nil
	}

	s.react(ctx, msg)

	out, ok := s.selector.Select(msg.Text, cfg)
	if !ok {
		return s.count(Passed), nil
	}

	log.Printf("[redactor] redacting message=%s author=%s mode=%s tokens=%d",
		msg.ID, msg.AuthorID, out.Mode, len(out.Redacted))
	metrics.RedactionsTotal.WithLabelValues(string(out.Mode)).Inc()
	metrics.RedactedTokens.Observe(float64(len(out.Redacted)))

	err := s.replacer.Apply(ctx, msg, out.Text())
	if err != nil {
		s.notifier.Notify(ctx, cfg.DebugChannelID, "Failed to redact message "+msg.ID+" in <#"+msg.ChannelID+">: "+err.Error())
	}
	s.record(ctx, msg, out, err)

	return s.count(Redacted), err
}

// react adds the side-feature reactions. Failures are logged and otherwise
// ignored.
func (s *Service) react(ctx context.Context, msg moderation.Message) {
	for _, emoji := range moderation.Reactions(msg.Text) {
		if err := s.platform.AddReaction(ctx, msg.ChannelID, msg.ID, emoji); err != nil {
			metrics.PlatformErrors.WithLabelValues("react").Inc()
			log.Printf("[redactor] reaction failed message=%s: %v", msg.ID, err)
			return
		}
	}
}

func (s *Service) record(ctx context.Context, msg moderation.Message, out moderation.Outcome, err error) {
	if s.auditor == nil {
		return
	}
	deleteErr, sendErr := stepErrors(err)
	_, aerr := s.auditor.RecordReplacement(context.WithoutCancel(ctx), audit.Replacement{
		MessageID:   msg.ID,
		ChannelID:   msg.ChannelID,
		AuthorID:    msg.AuthorID,
		Mode:        string(out.Mode),
		Redacted:    len(out.Redacted),
		DeleteError: deleteErr,
		SendError:   sendErr,
	})
	if aerr != nil {
		log.Printf("[redactor] audit message=%s: %v", msg.ID, aerr)
	}
}

func (s *Service) count(d Disposition) Disposition {
	metrics.MessagesTotal.WithLabelValues(string(d)).Inc()
	return d
}

var _ Subscriber = (*messaging.NATSClient)(nil)
