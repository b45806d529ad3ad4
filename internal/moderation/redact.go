package moderation

import (
	"math/rand/v2"

	"github.com/ciabot/redactor/internal/settings"
)

// markers is the fixed vocabulary substituted for redacted tokens.
var markers = []string{
	"`[REDACTED]`",
	"`[EXPUNGED]`",
	"`[CLASSIFIED]`",
	"`[REDACTED BY CIA]`",
	"`[REDACTED BY FBI]`",
	"`[REDACTED BY NSA]`",
	"`[REDACTED BY DHS]`",
	"`[REDACTED BY MI6]`",
	"`[REDACTED BY KGB]`",
	"`********`",
	"`████████`",
}

// Markers returns a copy of the redaction marker vocabulary.
func Markers() []string {
	return append([]string(nil), markers...)
}

// IsMarker reports whether s is one of the redaction markers.
func IsMarker(s string) bool {
	for _, m := range markers {
		if s == m {
			return true
		}
	}
	return false
}

// Rand is the random source used by the Selector. Float64 returns a value
// in [0,1) and IntN a value in [0,n). Implementations must be safe for
// concurrent use when messages are processed in parallel.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// globalRand draws from the math/rand/v2 top-level source, which is safe for
// concurrent use.
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// Selector decides whether and which tokens of a message to redact.
type Selector struct {
	rng Rand
}

// NewSelector returns a Selector drawing from rng, or from the process-wide
// source if rng is nil.
func NewSelector(rng Rand) *Selector {
	if rng == nil {
		rng = globalRand{}
	}
	return &Selector{rng: rng}
}

// Select runs the full decision for text. A message containing trigger words
// is always redacted in trigger mode. Any other message is redacted in ambient
// mode only if a draw against SelectionChance succeeds; otherwise the returned
// Outcome is unchanged and the bool is false.
func (s *Selector) Select(text string, cfg settings.Configuration) (Outcome, bool) {
	tokens := Tokenize(text)

	if idx := triggerIndices(tokens, cfg.TriggerWords); len(idx) > 0 {
		return s.Redact(tokens, idx, cfg.TriggerWordChance, ModeTrigger), true
	}

	if s.rng.Float64() < cfg.SelectionChance {
		all := make([]int, len(tokens))
		for i := range all {
			all[i] = i
		}
		return s.Redact(tokens, all, cfg.RedactionChance, ModeAmbient), true
	}

	return Outcome{Tokens: tokens}, false
}

// Redact draws Bernoulli(chance) independently for every candidate index and
// replaces the tokens that hit with a random marker. If no candidate hit, one
// candidate chosen uniformly is replaced anyway, so the outcome always
// changes when candidates is non-empty. tokens is not modified.
func (s *Selector) Redact(tokens []string, candidates []int, chance float64, mode Mode) Outcome {
	out := Outcome{
		Tokens: append([]string(nil), tokens...),
		Mode:   mode,
	}
	if len(candidates) == 0 {
		return out
	}

	for _, idx := range candidates {
		if s.rng.Float64() < chance {
			out.Tokens[idx] = s.marker()
			out.Redacted = append(out.Redacted, idx)
		}
	}

	if len(out.Redacted) == 0 {
		idx := candidates[s.rng.IntN(len(candidates))]
		out.Tokens[idx] = s.marker()
		out.Redacted = append(out.Redacted, idx)
	}

	out.Changed = true
	return out
}

func (s *Selector) marker() string {
	return markers[s.rng.IntN(len(markers))]
}
