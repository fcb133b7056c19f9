// Package conversation drives each guard through a procedure one step at a
// time and decides when to hand them to a supervisor.
package conversation

import (
	"time"

	"github.com/zulandar/watchtower/internal/catalog"
	"github.com/zulandar/watchtower/internal/intent"
)

// Speaker identifies who said a line in the transcript.
type Speaker string

const (
	SpeakerGuard     Speaker = "guard"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one transcript line.
type Turn struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// State is the per-guard conversation record. Exactly one exists per phone
// while a procedure is in progress.
type State struct {
	ID             string // identifies this state instance
	Phone          string
	Active         bool
	Procedure      *catalog.Procedure
	Step           int // 1-based index into Procedure.Steps
	Completed      []int // 1-based step numbers in completion order
	Retries        int
	StartedAt      time.Time
	LastActivityAt time.Time
	History        []Turn
	Menu           []intent.Intent // pending numbered menu, nil when none
}

// CurrentStep returns the step the guard is on, or nil past the end.
func (s *State) CurrentStep() *catalog.Step {
	if s.Procedure == nil {
		return nil
	}
	return s.Procedure.StepAt(s.Step)
}

// Clone returns a deep copy. The procedure pointer is shared.
func (s *State) Clone() *State {
	c := *s
	c.Completed = append([]int(nil), s.Completed...)
	c.History = append([]Turn(nil), s.History...)
	c.Menu = append([]intent.Intent(nil), s.Menu...)
	return &c
}

// CompletedSteps returns the completed steps in completion order.
func (s *State) CompletedSteps() []catalog.Step {
	out := make([]catalog.Step, 0, len(s.Completed))
	for _, n := range s.Completed {
		if st := s.Procedure.StepAt(n); st != nil {
			out = append(out, *st)
		}
	}
	return out
}

// CompletedInstructions returns the instruction text of each completed
// step, in completion order.
func (s *State) CompletedInstructions() []string {
	steps := s.CompletedSteps()
	out := make([]string, len(steps))
	for i, st := range steps {
		out[i] = st.Instruction
	}
	return out
}

// Transcript renders History as "speaker: text" lines.
func (s *State) Transcript() []string {
	return transcript(s.History)
}

func transcript(turns []Turn) []string {
	out := make([]string, len(turns))
	for i, t := range turns {
		out[i] = string(t.Speaker) + ": " + t.Text
	}
	return out
}

func (s *State) record(speaker Speaker, text string, at time.Time, limit int) {
	s.History = append(s.History, Turn{Speaker: speaker, Text: text, At: at})
	if limit > 0 && len(s.History) > limit {
		s.History = append([]Turn(nil), s.History[len(s.History)-limit:]...)
	}
}
