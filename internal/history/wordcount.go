package history

import "strings"

// WordCount counts words the way the stats screen always has: tokens split on
// ASCII spaces plus tokens split on ideographic spaces (U+3000), summed. Text
// containing both separator styles counts some words twice. The stats history
// was accumulated under this rule, so it stays.
func WordCount(text string) int {
	return countTokens(text, " ") + countTokens(text, "　")
}

func countTokens(text, sep string) int {
	var n int
	for _, tok := range strings.Split(text, sep) {
		if tok != "" {
			n++
		}
	}
	return n
}
