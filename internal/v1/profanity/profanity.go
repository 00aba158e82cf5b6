// Package profanity implements the chat profanity collaborator spec §6
// names: a pure function over a static word list. No third-party
// profanity library appears anywhere in the reference material this
// module was grounded on, so this stays on the standard library by
// necessity rather than preference.
package profanity

import (
	"regexp"
	"strings"
)

// wordList is deliberately small and mild — this module's job is to prove
// the collaborator's contract (detect, censor), not to ship a production
// blocklist.
var wordList = []string{
	"damn",
	"hell",
	"crap",
	"bastard",
	"bitch",
	"bollocks",
}

var wordPattern = buildPattern(wordList)

func buildPattern(words []string) *regexp.Regexp {
	escaped := make([]string, len(words))
	for i, w := range words {
		escaped[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(escaped, "|") + `)\b`)
}

// Result is the outcome of validating a chat message's text.
type Result struct {
	ContainsProfanity bool
	CleanedText       string
}

// Validate scans text against the static word list, returning whether it
// matched and a censored variant with every match replaced by asterisks
// of the same length.
func Validate(text string) Result {
	if !wordPattern.MatchString(text) {
		return Result{ContainsProfanity: false, CleanedText: text}
	}

	cleaned := wordPattern.ReplaceAllStringFunc(text, func(match string) string {
		return strings.Repeat("*", len(match))
	})
	return Result{ContainsProfanity: true, CleanedText: cleaned}
}
