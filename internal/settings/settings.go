// Package settings owns the bot's mutable runtime configuration. The
// configuration is read on every message, changed only by administrative
// commands, and persisted synchronously after every change:
//
//	{
//	  "redaction_chance": 0.08,
//	  "selection_chance": 0.005,
//	  "trigger_words": ["..."],
//	  "trigger_word_chance": 0.1,
//	  "bypass_prefix": ">>",
//	  "channel_blacklist": ["..."],
//	  "channel_whitelist": ["..."],
//	  "timeout_expiration": 0,
//	  "debug_channel_id": ""
//	}
package settings

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Default values used when the persisted document is absent or lacks a key.
const (
	DefaultRedactionChance   = 0.08
	DefaultSelectionChance   = 0.005
	DefaultTriggerWordChance = 0.1
	DefaultBypassPrefix      = ">>"
)

// Set is an unordered collection of strings.
type Set map[string]struct{}

// NewSet builds a set from elems, skipping empty strings.
func NewSet(elems ...string) Set {
	s := make(Set, len(elems))
	for _, e := range elems {
		if e != "" {
			s[e] = struct{}{}
		}
	}
	return s
}

// Has reports whether v is a member of the set.
func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

// Configuration is the full set of runtime settings. Chance fields are
// probabilities in [0,1]; they are stored as given and never clamped.
type Configuration struct {
	RedactionChance   float64
	SelectionChance   float64
	TriggerWords      Set
	TriggerWordChance float64
	BypassPrefix      string
	ChannelAllowList  Set
	ChannelDenyList   Set
	TimeoutExpiration int64 // unix seconds
	DebugChannelID    string
}

// Defaults returns the compiled-in configuration.
func Defaults() Configuration {
	return Configuration{
		RedactionChance:   DefaultRedactionChance,
		SelectionChance:   DefaultSelectionChance,
		TriggerWords:      Set{},
		TriggerWordChance: DefaultTriggerWordChance,
		BypassPrefix:      DefaultBypassPrefix,
		ChannelAllowList:  Set{},
		ChannelDenyList:   Set{},
	}
}

// Clone returns a deep copy of c.
func (c Configuration) Clone() Configuration {
	out := c
	out.TriggerWords = c.TriggerWords.Clone()
	out.ChannelAllowList = c.ChannelAllowList.Clone()
	out.ChannelDenyList = c.ChannelDenyList.Clone()
	return out
}

// InTimeout reports whether moderation is suspended at now.
func (c Configuration) InTimeout(now time.Time) bool {
	return now.Unix() < c.TimeoutExpiration
}

// document is the persisted JSON shape. Key names match the settings files
// written by earlier versions of the bot.
type document struct {
	RedactionChance   float64     `json:"redaction_chance"`
	SelectionChance   float64     `json:"selection_chance"`
	TriggerWords      flexSet     `json:"trigger_words"`
	TriggerWordChance float64     `json:"trigger_word_chance"`
	BypassPrefix      string      `json:"bypass_prefix"`
	ChannelBlacklist  flexSet     `json:"channel_blacklist"`
	ChannelWhitelist  flexSet     `json:"channel_whitelist"`
	TimeoutExpiration json.Number `json:"timeout_expiration"`
	DebugChannelID    flexString  `json:"debug_channel_id"`
}

// MarshalJSON encodes the configuration with sets as sorted arrays so the
// output is stable across saves.
func (c Configuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(document{
		RedactionChance:   c.RedactionChance,
		SelectionChance:   c.SelectionChance,
		TriggerWords:      c.TriggerWords.Sorted(),
		TriggerWordChance: c.TriggerWordChance,
		BypassPrefix:      c.BypassPrefix,
		ChannelBlacklist:  c.ChannelDenyList.Sorted(),
		ChannelWhitelist:  c.ChannelAllowList.Sorted(),
		TimeoutExpiration: json.Number(strconv.FormatInt(c.TimeoutExpiration, 10)),
		DebugChannelID:    flexString(c.DebugChannelID),
	})
}

// UnmarshalJSON decodes a settings document. Keys missing from the document
// keep their default values.
func (c *Configuration) UnmarshalJSON(data []byte) error {
	def := Defaults()
	doc := document{
		RedactionChance:   def.RedactionChance,
		SelectionChance:   def.SelectionChance,
		TriggerWordChance: def.TriggerWordChance,
		BypassPrefix:      def.BypassPrefix,
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	timeout, err := parseUnix(doc.TimeoutExpiration)
	if err != nil {
		return fmt.Errorf("timeout_expiration: %w", err)
	}

	*c = Configuration{
		RedactionChance:   doc.RedactionChance,
		SelectionChance:   doc.SelectionChance,
		TriggerWords:      normalizedSet(doc.TriggerWords, normalizeWord),
		TriggerWordChance: doc.TriggerWordChance,
		BypassPrefix:      doc.BypassPrefix,
		ChannelAllowList:  normalizedSet(doc.ChannelWhitelist, normalizeChannel),
		ChannelDenyList:   normalizedSet(doc.ChannelBlacklist, normalizeChannel),
		TimeoutExpiration: timeout,
		DebugChannelID:    strings.TrimSpace(string(doc.DebugChannelID)),
	}
	return nil
}

// parseUnix accepts integer or fractional seconds; older files stored the
// expiration as a float timestamp.
func parseUnix(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%s out of range", n)
	}
	return int64(f), nil
}

func normalizeWord(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeChannel(s string) string {
	return strings.TrimSpace(s)
}

func normalizedSet(elems []string, normalize func(string) string) Set {
	s := make(Set, len(elems))
	for _, e := range elems {
		if v := normalize(e); v != "" {
			s[v] = struct{}{}
		}
	}
	return s
}

// flexSet decodes either a JSON array of strings or the {"py/set": [...]}
// object written by the python bot.
type flexSet []string

func (f *flexSet) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}
	var wrapped struct {
		Set []string `json:"py/set"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return fmt.Errorf("expected a list of strings: %w", err)
	}
	*f = wrapped.Set
	return nil
}

// flexString decodes a JSON string or number into its string form. Channel
// ids were written as numbers by some versions of the bot.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected a string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}
