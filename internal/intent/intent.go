// Package intent classifies guard messages into a closed set of intents.
package intent

import "strings"

// Intent is the classified purpose of a guard message.
type Intent int

const (
	Unknown Intent = iota

	// Procedure active.
	Solved
	Next
	Stuck
	Escalate
	Clarify
	Skip

	// No procedure active.
	SignOff
	EquipmentIssue
	Report
	NeedSupervisor
	Question
	ActiveConversation
	Other
)

var labels = map[Intent]string{
	Unknown:            "UNKNOWN",
	Solved:             "SOLVED",
	Next:               "NEXT",
	Stuck:              "STUCK",
	Escalate:           "ESCALATE",
	Clarify:            "CLARIFY",
	Skip:               "SKIP",
	SignOff:            "SIGN_OFF",
	EquipmentIssue:     "EQUIPMENT_ISSUE",
	Report:             "REPORT",
	NeedSupervisor:     "NEED_SUPERVISOR",
	Question:           "QUESTION",
	ActiveConversation: "ACTIVE_CONVERSATION",
	Other:              "OTHER",
}

// ActiveVocabulary is the intent set used while a procedure is in progress.
var ActiveVocabulary = []Intent{Solved, Next, Stuck, Escalate, Clarify, Skip}

// IdleVocabulary is the intent set used when no procedure is active.
var IdleVocabulary = []Intent{SignOff, EquipmentIssue, Report, NeedSupervisor, Question, ActiveConversation, Other}

func (i Intent) String() string {
	if s, ok := labels[i]; ok {
		return s
	}
	return "UNKNOWN"
}

// Parse maps a label to an Intent. Case, surrounding whitespace and
// punctuation are ignored; spaces and hyphens are treated as underscores.
// Unrecognised labels return Unknown.
func Parse(label string) Intent {
	s := strings.ToUpper(strings.Trim(strings.TrimSpace(label), ".:;!\"'`*"))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	for i, l := range labels {
		if l == s && i != Unknown {
			return i
		}
	}
	return Unknown
}

// In reports whether i is a member of set.
func (i Intent) In(set []Intent) bool {
	for _, s := range set {
		if s == i {
			return true
		}
	}
	return false
}
