package moderation

import (
	"testing"
	"time"

	"github.com/ciabot/redactor/internal/settings"
)

func TestIsEligible(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	base := func() settings.Configuration {
		cfg := settings.Defaults()
		cfg.BypassPrefix = ">>"
		return cfg
	}

	tests := []struct {
		name     string
		msg      Message
		cfg      func() settings.Configuration
		eligible bool
	}{
		{"plain message", Message{ChannelID: "1", Text: "hello"}, base, true},
		{"in timeout", Message{ChannelID: "1", Text: "hello"}, func() settings.Configuration {
			cfg := base()
			cfg.TimeoutExpiration = now.Unix() + 60
			return cfg
		}, false},
		{"timeout just expired", Message{ChannelID: "1", Text: "hello"}, func() settings.Configuration {
			cfg := base()
			cfg.TimeoutExpiration = now.Unix()
			return cfg
		}, true},
		{"deny listed", Message{ChannelID: "1", Text: "hello"}, func() settings.Configuration {
			cfg := base()
			cfg.ChannelDenyList = settings.NewSet("1")
			return cfg
		}, false},
		{"not on allow list", Message{ChannelID: "2", Text: "hello"}, func() settings.Configuration {
			cfg := base()
			cfg.ChannelAllowList = settings.NewSet("1")
			return cfg
		}, false},
		{"on allow list", Message{ChannelID: "1", Text: "hello"}, func() settings.Configuration {
			cfg := base()
			cfg.ChannelAllowList = settings.NewSet("1")
			return cfg
		}, true},
		{"deny wins over allow", Message{ChannelID: "1", Text: "hello"}, func() settings.Configuration {
			cfg := base()
			cfg.ChannelAllowList = settings.NewSet("1")
			cfg.ChannelDenyList = settings.NewSet("1")
			return cfg
		}, false},
		{"bypass prefix", Message{ChannelID: "1", Text: ">>hello"}, base, false},
		{"bypass prefix not at start", Message{ChannelID: "1", Text: "hello >>"}, base, true},
		{"empty bypass prefix disables bypass", Message{ChannelID: "1", Text: "hello"}, func() settings.Configuration {
			cfg := base()
			cfg.BypassPrefix = ""
			return cfg
		}, true},
		{"image attachment", Message{ChannelID: "1", Text: "look", HasImage: true}, base, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEligible(tt.msg, tt.cfg(), now); got != tt.eligible {
				t.Errorf("IsEligible() = %v, want %v", got, tt.eligible)
			}
		})
	}
}

func TestFindTriggerTokens(t *testing.T) {
	triggers := settings.NewSet("secret", "cia")

	tests := []struct {
		name string
		text string
		want []int
	}{
		{"no hit", "nothing to see here", nil},
		{"single hit", "the secret plan", []int{1}},
		{"case insensitive", "The SECRET Plan", []int{1}},
		{"multiple hits", "cia secret cia", []int{0, 1, 2}},
		{"punctuation blocks match", "secret, plan", nil},
		{"substring no match", "secretive", nil},
		{"empty tokens keep positions", "a  secret", []int{2}},
		{"empty text", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindTriggerTokens(tt.text, triggers)
			if len(got) != len(tt.want) {
				t.Fatalf("FindTriggerTokens(%q) = %v, want %v", tt.text, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("FindTriggerTokens(%q)[%d] = %d, want %d", tt.text, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFindTriggerTokens_EmptySet(t *testing.T) {
	if got := FindTriggerTokens("anything at all", settings.Set{}); got != nil {
		t.Errorf("FindTriggerTokens with no triggers = %v, want nil", got)
	}
}

func TestTokenize_PreservesSpacing(t *testing.T) {
	for _, text := range []string{"a b", "a  b", " lead", "trail ", ""} {
		o := Outcome{Tokens: Tokenize(text)}
		if o.Text() != text {
			t.Errorf("Tokenize(%q) rejoined = %q", text, o.Text())
		}
	}
}
