package conversation

import (
	"fmt"
	"strings"

	"github.com/zulandar/watchtower/internal/intent"
)

// Guard-facing replies.
const (
	msgCompleted     = "🎉 All done! Great job. Let me know if you need anything else."
	msgResolved      = "Glad it's fixed! I've logged it. Let me know if you need anything else."
	msgEscalated     = "Connecting you with your supervisor. They'll reach out shortly."
	msgAnswerFailed  = "I'm having trouble right now. Text your supervisor."
	msgHandoffLogged = "Got it, your shift sign-off is logged. Thanks for the hard work today."
	msgReportLogged  = "Report received and logged. Thanks for letting us know."
)

// repeatMessage resends a step after the guard got stuck.
func repeatMessage(n int, instruction string) string {
	return fmt.Sprintf("No worries. Here's Step %d again:\n\n%s\n\nStill stuck? Text 'supervisor' and I'll get someone.", n, instruction)
}

// menuOption is the guard-facing label for each intent offered in a menu.
var menuOption = map[intent.Intent]string{
	intent.Next:     "Step done, send the next one",
	intent.Solved:   "The whole problem is fixed",
	intent.Stuck:    "I'm stuck on this step",
	intent.Escalate: "Get my supervisor",
}

// lowConfidenceMenu lists the plausible intents when the classifier is unsure.
var lowConfidenceMenu = []intent.Intent{intent.Next, intent.Solved, intent.Stuck, intent.Escalate}

// clarifyMenu separates "this step worked" from "the problem is gone".
var clarifyMenu = []intent.Intent{intent.Solved, intent.Next}

// menuText renders a numbered menu for step n.
func menuText(n int, menu []intent.Intent) string {
	var b strings.Builder
	if len(menu) == len(clarifyMenu) && menu[0] == intent.Solved && menu[1] == intent.Next {
		fmt.Fprintf(&b, "Just to check on Step %d. Reply with a number:\n", n)
	} else {
		fmt.Fprintf(&b, "Not sure I got that for Step %d. Reply with a number:\n", n)
	}
	for i, in := range menu {
		fmt.Fprintf(&b, "\n%d. %s", i+1, menuOption[in])
	}
	return b.String()
}

// parseChoice reads a numeric menu reply. It accepts surrounding text such
// as "2." or "option 1" but only when a single number is present.
func parseChoice(text string, menu []intent.Intent) (intent.Intent, bool) {
	fields := strings.FieldsFunc(text, func(r rune) bool { return r < '0' || r > '9' })
	if len(fields) != 1 {
		return intent.Unknown, false
	}
	var n int
	if _, err := fmt.Sscanf(fields[0], "%d", &n); err != nil {
		return intent.Unknown, false
	}
	if n < 1 || n > len(menu) {
		return intent.Unknown, false
	}
	return menu[n-1], true
}
