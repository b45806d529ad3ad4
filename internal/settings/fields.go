package settings

import (
	"encoding/json"
	"math"
	"sort"
)

// Symbolic keys used by administrative commands.
const (
	KeyRedactionChance   = "redaction_chance"
	KeySelectionChance   = "selection_chance"
	KeyTriggerWords      = "trigger_words"
	KeyTriggerWordChance = "trigger_word_chance"
	KeyBypassPrefix      = "bypass_prefix"
	KeyChannelBlacklist  = "channel_blacklist"
	KeyChannelWhitelist  = "channel_whitelist"
	KeyTimeoutExpiration = "timeout_expiration"
	KeyDebugChannelID    = "debug_channel_id"
)

type fieldKind int

const (
	kindFloat fieldKind = iota
	kindInt
	kindString
	kindSet
)

func (k fieldKind) String() string {
	switch k {
	case kindFloat:
		return "a number"
	case kindInt:
		return "an integer"
	case kindString:
		return "a string"
	default:
		return "a list of strings"
	}
}

// field is one entry of the dispatch table. Exactly one accessor matching
// kind is set.
type field struct {
	kind      fieldKind
	float     func(*Configuration) *float64
	int       func(*Configuration) *int64
	str       func(*Configuration) *string
	set       func(*Configuration) *Set
	normalize func(string) string
}

var fields = map[string]field{
	KeyRedactionChance:   {kind: kindFloat, float: func(c *Configuration) *float64 { return &c.RedactionChance }},
	KeySelectionChance:   {kind: kindFloat, float: func(c *Configuration) *float64 { return &c.SelectionChance }},
	KeyTriggerWordChance: {kind: kindFloat, float: func(c *Configuration) *float64 { return &c.TriggerWordChance }},
	KeyTriggerWords: {
		kind:      kindSet,
		set:       func(c *Configuration) *Set { return &c.TriggerWords },
		normalize: normalizeWord,
	},
	KeyChannelBlacklist: {
		kind:      kindSet,
		set:       func(c *Configuration) *Set { return &c.ChannelDenyList },
		normalize: normalizeChannel,
	},
	KeyChannelWhitelist: {
		kind:      kindSet,
		set:       func(c *Configuration) *Set { return &c.ChannelAllowList },
		normalize: normalizeChannel,
	},
	KeyBypassPrefix:      {kind: kindString, str: func(c *Configuration) *string { return &c.BypassPrefix }},
	KeyDebugChannelID:    {kind: kindString, str: func(c *Configuration) *string { return &c.DebugChannelID }},
	KeyTimeoutExpiration: {kind: kindInt, int: func(c *Configuration) *int64 { return &c.TimeoutExpiration }},
}

// Keys returns every settable key in lexical order.
func Keys() []string {
	out := make([]string, 0, len(fields))
	for k := range fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func lookup(key string) (field, error) {
	f, ok := fields[key]
	if !ok {
		return field{}, &UnknownKeyError{Key: key}
	}
	return f, nil
}

// assign overwrites the field on c with v.
func (f field) assign(c *Configuration, key string, v any) error {
	mismatch := &TypeMismatchError{Key: key, Want: f.kind.String(), Got: v}
	switch f.kind {
	case kindFloat:
		x, ok := toFloat(v)
		if !ok {
			return mismatch
		}
		*f.float(c) = x
	case kindInt:
		x, ok := toInt(v)
		if !ok {
			return mismatch
		}
		*f.int(c) = x
	case kindString:
		x, ok := v.(string)
		if !ok {
			return mismatch
		}
		*f.str(c) = x
	case kindSet:
		x, ok := v.([]string)
		if !ok {
			return mismatch
		}
		*f.set(c) = normalizedSet(x, f.normalize)
	}
	return nil
}

// value returns the current value of the field on c.
func (f field) value(c *Configuration) any {
	switch f.kind {
	case kindFloat:
		return *f.float(c)
	case kindInt:
		return *f.int(c)
	case kindString:
		return *f.str(c)
	default:
		return (*f.set(c)).Sorted()
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		i, err := x.Int64()
		return i, err == nil
	}
	return 0, false
}
