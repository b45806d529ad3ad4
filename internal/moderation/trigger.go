package moderation

import (
	"strings"

	"github.com/ciabot/redactor/internal/settings"
)

// Tokenize splits text on single spaces. Consecutive spaces yield empty
// tokens so that joining the tokens with " " reproduces the text exactly.
func Tokenize(text string) []string {
	return strings.Split(text, " ")
}

// FindTriggerTokens returns, in ascending order, the indices of the tokens of
// text whose lower-cased form is a member of triggers. Members are expected
// to be stored lower-cased, which the settings store guarantees.
func FindTriggerTokens(text string, triggers settings.Set) []int {
	return triggerIndices(Tokenize(text), triggers)
}

func triggerIndices(tokens []string, triggers settings.Set) []int {
	if len(triggers) == 0 {
		return nil
	}
	var out []int
	for i, tok := range tokens {
		if triggers.Has(strings.ToLower(tok)) {
			out = append(out, i)
		}
	}
	return out
}
