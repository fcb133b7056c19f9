package intent

import (
	"strings"
	"unicode"
)

// Phrase sets are matched on word boundaries against the normalised message,
// except escalationPhrases which match anywhere so possessives and plurals
// ("my supervisor's number") still reach a human.
var (
	escalationPhrases = []string{
		"supervisor", "manager", "boss", "escalate",
		"need help", "call someone", "get someone", "i need someone",
		"someone help", "can someone help",
	}

	confusedPhrases = []string{
		"idk", "i don't know", "i dont know", "confused", "huh",
		"don't understand", "dont understand", "stuck", "lost", "unclear",
		"not sure", "unsure", "wtf", "didn't work", "didnt work",
		"doesn't work", "doesnt work", "not working", "nothing happened",
		"can't find", "cant find",
	}

	// ambiguousAffirmations could mean "step done" or "problem fixed".
	// They never count as SOLVED on their own.
	ambiguousAffirmations = []string{
		"it worked", "that worked", "worked", "it works", "works",
		"it's working", "its working", "working", "good", "ok", "okay",
		"cool", "nice", "great", "perfect", "awesome", "sweet",
	}

	// resolutionMarkers indicate the original problem is fixed.
	resolutionMarkers = []string{
		"fixed", "resolved", "solved", "back up", "back on", "back online",
		"working now", "working again", "works now", "is normal", "are normal",
		"up now", "showing now", "all good now", "problem is gone",
	}

	signOffPhrases = []string{
		"signing off", "sign off", "sign-off", "end of shift", "end of my shift",
		"shift over", "shift is over", "clocking out", "clocked out",
		"off duty", "heading out", "shift done",
	}

	reportPrefixes = []string{"report:", "report -", "incident report", "incident:"}
)

// normalize lowercases s, maps punctuation to spaces and collapses runs of
// whitespace. Apostrophes are kept so "don't" still matches.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '\'':
			b.WriteRune(r)
		case r == '’':
			b.WriteRune('\'')
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func containsPhrase(normalized string, phrases []string) bool {
	padded := " " + normalized + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+normalize(p)+" ") {
			return true
		}
	}
	return false
}

// containsSubstring is containsPhrase without the word boundaries.
func containsSubstring(normalized string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(normalized, normalize(p)) {
			return true
		}
	}
	return false
}

// IsEscalationRequest reports whether message explicitly asks for a human.
func IsEscalationRequest(message string) bool {
	return containsSubstring(normalize(message), escalationPhrases)
}

// IsConfused reports whether message signals confusion or a failed step.
func IsConfused(message string) bool {
	return containsPhrase(normalize(message), confusedPhrases)
}

// IsAmbiguousAffirmation reports whether the whole message is an
// affirmation that does not say which thing worked.
func IsAmbiguousAffirmation(message string) bool {
	n := normalize(message)
	for _, p := range ambiguousAffirmations {
		if n == p {
			return true
		}
	}
	return false
}

// MentionsResolution reports whether message says the problem itself is fixed.
func MentionsResolution(message string) bool {
	return containsPhrase(normalize(message), resolutionMarkers)
}

// IsSignOff reports whether message announces the end of a shift.
func IsSignOff(message string) bool {
	return containsPhrase(normalize(message), signOffPhrases)
}

// IsReport reports whether message is formatted as a guard report.
func IsReport(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, p := range reportPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
