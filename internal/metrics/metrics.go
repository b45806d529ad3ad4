// Package metrics provides Prometheus instrumentation for the redaction bot.
// It exposes counters for message outcomes, redactions, platform failures and
// admin commands, and a histogram for pipeline latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MessagesTotal counts inbound messages by outcome: "skipped",
	// "ineligible", "passed" or "redacted".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ciabot_messages_total",
		Help: "Total number of inbound messages by pipeline outcome",
	}, []string{"outcome"})

	// RedactionsTotal counts replaced messages by selection mode.
	RedactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ciabot_redactions_total",
		Help: "Total number of messages replaced with a redacted copy",
	}, []string{"mode"}) // mode = "trigger", "ambient"

	// RedactedTokens records how many tokens were replaced per redaction.
	RedactedTokens = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ciabot_redacted_tokens",
		Help:    "Number of tokens replaced per redacted message",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
	})

	// PlatformErrors counts failed platform calls by operation: "delete",
	// "send" or "react".
	PlatformErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ciabot_platform_errors_total",
		Help: "Total number of failed platform calls",
	}, []string{"op"})

	// CommandsTotal counts admin commands by name and result: "ok",
	// "error" or "denied".
	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ciabot_commands_total",
		Help: "Total number of admin commands handled",
	}, []string{"command", "result"})

	// SettingsSaves counts settings persistence attempts by result.
	SettingsSaves = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ciabot_settings_saves_total",
		Help: "Total number of settings persistence attempts",
	}, []string{"result"}) // result = "ok", "error"

	// NoticesDropped counts debug-channel notices suppressed by the rate limiter.
	NoticesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ciabot_notices_dropped_total",
		Help: "Debug channel notices suppressed by rate limiting",
	})

	// PipelineLatency records end-to-end message handling latency in seconds.
	PipelineLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ciabot_pipeline_latency_seconds",
		Help:    "Message handling latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})
)

func init() {
	prometheus.MustRegister(
		MessagesTotal,
		RedactionsTotal,
		RedactedTokens,
		PlatformErrors,
		CommandsTotal,
		SettingsSaves,
		NoticesDropped,
		PipelineLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
