package moderation

import "strings"

// reactionRule pairs a text predicate with the word spelled out in
// regional-indicator emoji when it matches.
type reactionRule struct {
	name  string
	word  string
	match func(lower string) bool
}

// reactionRules is the ordered list of rules applied by Reactions.
var reactionRules = []reactionRule{
	{name: "js", word: "bad", match: func(lower string) bool {
		return strings.Contains(lower, "js")
	}},
}

// Reactions returns the emoji to add to a message with the given text, in
// the order they should be added. Messages containing links never get
// reactions. Callers are expected to apply the same eligibility gate as for
// redaction.
func Reactions(text string) []string {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "http") {
		return nil
	}

	var out []string
	for _, r := range reactionRules {
		if r.match(lower) {
			out = append(out, spell(r.word)...)
		}
	}
	return out
}

// spell converts word into regional-indicator emoji, one per distinct letter
// in order of first appearance (a message cannot carry the same reaction
// twice). Words with anything other than ASCII letters yield nil.
func spell(word string) []string {
	upper := strings.ToUpper(word)
	seen := make(map[rune]bool, len(upper))
	out := make([]string, 0, len(upper))
	for _, c := range upper {
		if c < 'A' || c > 'Z' {
			return nil
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, string(rune(0x1F1E6+(c-'A'))))
	}
	return out
}
