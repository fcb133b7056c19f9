package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		label string
		want  Intent
	}{
		{"SOLVED", Solved},
		{"next", Next},
		{" Stuck ", Stuck},
		{"ESCALATE.", Escalate},
		{"clarify", Clarify},
		{"SKIP", Skip},
		{"SIGN_OFF", SignOff},
		{"sign off", SignOff},
		{"equipment-issue", EquipmentIssue},
		{"REPORT", Report},
		{"NEED_SUPERVISOR", NeedSupervisor},
		{"QUESTION", Question},
		{"ACTIVE_CONVERSATION", ActiveConversation},
		{"OTHER", Other},
		{"**NEXT**", Next},
		{"MAYBE", Unknown},
		{"", Unknown},
		{"UNKNOWN", Unknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Parse(tt.label), "Parse(%q)", tt.label)
	}
}

func TestString_RoundTrip(t *testing.T) {
	for _, i := range append(append([]Intent{}, ActiveVocabulary...), IdleVocabulary...) {
		assert.Equal(t, i, Parse(i.String()))
	}
	assert.Equal(t, "UNKNOWN", Intent(99).String())
}

func TestVocabularies_Disjoint(t *testing.T) {
	for _, i := range ActiveVocabulary {
		assert.False(t, i.In(IdleVocabulary), i.String())
	}
}
