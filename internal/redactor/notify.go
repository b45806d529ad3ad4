package redactor

import (
	"context"
	"log"

	"github.com/ciabot/redactor/internal/metrics"
	"github.com/ciabot/redactor/internal/ratelimit"
)

// Notifier posts operational notices to the debug channel, throttled so a
// platform outage does not turn into a flood of notices.
type Notifier struct {
	platform Platform
	limiter  ratelimit.Allower
	rule     ratelimit.Rule
}

// NewNotifier returns a Notifier posting through platform. A nil limiter
// disables throttling.
func NewNotifier(platform Platform, limiter ratelimit.Allower) *Notifier {
	return &Notifier{platform: platform, limiter: limiter, rule: ratelimit.RuleDebugNotice}
}

// Notify posts text to channelID. It does nothing when channelID is empty and
// drops the notice when the channel's budget is spent. Failures are logged
// only.
func (n *Notifier) Notify(ctx context.Context, channelID, text string) {
	if n == nil || channelID == "" {
		return
	}

	if n.limiter != nil {
		ok, err := n.limiter.Allow(ctx, channelID, n.rule)
		if err != nil {
			log.Printf("[redactor] notice limiter: %v", err)
		}
		if !ok {
			metrics.NoticesDropped.Inc()
			return
		}
	}

	if err := n.platform.SendMessage(context.WithoutCancel(ctx), channelID, text); err != nil {
		metrics.PlatformErrors.WithLabelValues("send").Inc()
		log.Printf("[redactor] debug notice to channel=%s failed: %v", channelID, err)
	}
}
