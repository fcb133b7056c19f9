package intent

import (
	"fmt"
	"strings"

	"github.com/zulandar/watchtower/internal/catalog"
)

// Example is a documented classification used both in the prompt and in tests.
type Example struct {
	Message string
	Intent  Intent
}

// ActiveExamples document how messages map to intents mid-procedure. The
// first block pins the conservative rule: ambiguous affirmations are
// CLARIFY, only an explicit "the problem is fixed" is SOLVED.
var ActiveExamples = []Example{
	{"it worked", Clarify},
	{"good", Clarify},
	{"ok", Clarify},
	{"it's fixed now, cameras are back up", Solved},
	{"cameras are showing on the TV again, all fixed", Solved},
	{"done", Next},
	{"I'm there", Next},
	{"connected", Next},
	{"it says system reset complete", Next},
	{"nothing happened when I pressed it", Stuck},
	{"where is the IT room?", Stuck},
	{"I already see the Guard View screen", Skip},
	{"I'm past that, the mouse is plugged in", Skip},
	{"this is ridiculous get me a real person", Escalate},
}

// IdleExamples document the no-procedure vocabulary.
var IdleExamples = []Example{
	{"signing off, all quiet tonight", SignOff},
	{"the printer in the guard shack is broken", EquipmentIssue},
	{"report: found the side door unlocked at 2am, secured it", Report},
	{"can you have my supervisor call me", NeedSupervisor},
	{"when is payday?", Question},
	{"about what we talked about earlier", ActiveConversation},
	{"lol", Other},
}

const activeSystemPrompt = `You classify text messages from a security guard who is working through a troubleshooting checklist.

Reply with ONE JSON object and nothing else:
{"intent": "<LABEL>", "confidence": <0-100>}

Labels:
- SOLVED: the guard explicitly says the ORIGINAL PROBLEM is fixed, not just the current step.
- NEXT: the current step is done and the guard is ready for the next one.
- STUCK: the step failed, or the guard is confused or cannot find something.
- ESCALATE: the guard asks for a human or is clearly frustrated.
- CLARIFY: ambiguous; the message could mean "step done" or "problem fixed".
- SKIP: the guard says they are already further along than the current step.

Rules:
- Be conservative. Short affirmations like "it worked", "good" or "ok" are CLARIFY, never SOLVED.
- Only use SOLVED when the message says the original problem is resolved.
- Confidence reflects how sure you are, 0 to 100.`

const idleSystemPrompt = `You classify text messages from a security guard who is NOT in the middle of a checklist.

Reply with ONE JSON object and nothing else:
{"intent": "<LABEL>", "confidence": <0-100>}

Labels:
- SIGN_OFF: the guard is ending their shift.
- EQUIPMENT_ISSUE: something on site is broken or not working.
- REPORT: the guard is submitting an incident or activity report.
- NEED_SUPERVISOR: the guard wants a supervisor or manager.
- QUESTION: a question about policy, pay, schedules or procedures.
- ACTIVE_CONVERSATION: the guard refers to an earlier conversation.
- OTHER: anything else.`

const locatorSystemPrompt = `A security guard is working through a numbered checklist. Based on their message, decide which step number they are at or ready to start. Reply with the step number only.`

func examplesBlock(examples []Example) string {
	var b strings.Builder
	b.WriteString("Examples:\n")
	for _, ex := range examples {
		fmt.Fprintf(&b, "%q -> %s\n", ex.Message, ex.Intent)
	}
	return b.String()
}

func activePrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Procedure: %s\n", req.Procedure.Title)
	if step := req.Procedure.StepAt(req.StepNumber); step != nil {
		fmt.Fprintf(&b, "Current step %d of %d: %s\n", req.StepNumber, len(req.Procedure.Steps), step.Instruction)
	}
	writeHistory(&b, req.History)
	b.WriteString("\n")
	b.WriteString(examplesBlock(ActiveExamples))
	fmt.Fprintf(&b, "\nGuard message: %q\n", req.Message)
	return b.String()
}

func idlePrompt(req Request) string {
	var b strings.Builder
	writeHistory(&b, req.History)
	b.WriteString(examplesBlock(IdleExamples))
	fmt.Fprintf(&b, "\nGuard message: %q\n", req.Message)
	return b.String()
}

func writeHistory(b *strings.Builder, history []string) {
	if len(history) == 0 {
		return
	}
	b.WriteString("Recent conversation:\n")
	for _, line := range history {
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func locatorPrompt(proc *catalog.Procedure, message string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Procedure: %s\n", proc.Title)
	for i, s := range proc.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Instruction)
	}
	fmt.Fprintf(&b, "\nGuard message: %q\nStep number:", message)
	return b.String()
}
