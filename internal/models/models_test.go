package models

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestIncident_Fields(t *testing.T) {
	typ := reflect.TypeOf(Incident{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:36")
	assertGormTag(t, typ, "StateID", "index")
	assertGormTag(t, typ, "Phone", "not null")
	assertGormTag(t, typ, "Phone", "index")
	assertGormTag(t, typ, "Issue", "size:256")
	assertGormTag(t, typ, "Outcome", "size:16")
	assertGormTag(t, typ, "Outcome", "index")
	assertGormTag(t, typ, "Reason", "type:text")
	assertGormTag(t, typ, "CompletedSteps", "type:json")
	assertGormTag(t, typ, "Transcript", "type:mediumtext")
	assertGormTag(t, typ, "EndedAt", "index")

	assertFieldType(t, typ, "ID", "string")
	assertFieldType(t, typ, "Step", "int")
	assertFieldType(t, typ, "StartedAt", "*time.Time")
	assertFieldType(t, typ, "EndedAt", "time.Time")
	assertFieldType(t, typ, "CreatedAt", "time.Time")
}

func TestShiftHandoff_Fields(t *testing.T) {
	typ := reflect.TypeOf(ShiftHandoff{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "autoIncrement")
	assertGormTag(t, typ, "Phone", "not null")
	assertGormTag(t, typ, "Notes", "type:text")
	assertGormTag(t, typ, "SignedOff", "index")

	assertFieldType(t, typ, "ID", "uint")
	assertFieldType(t, typ, "SignedOff", "time.Time")
}

func TestGuardReport_Fields(t *testing.T) {
	typ := reflect.TypeOf(GuardReport{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "Body", "type:text")
	assertGormTag(t, typ, "Body", "not null")
	assertGormTag(t, typ, "ReceivedAt", "index")

	assertFieldType(t, typ, "ID", "uint")
	assertFieldType(t, typ, "ReceivedAt", "time.Time")
}

func TestConversationState_Fields(t *testing.T) {
	typ := reflect.TypeOf(ConversationState{})

	assertGormTag(t, typ, "Phone", "primaryKey")
	assertGormTag(t, typ, "Phone", "size:32")
	assertGormTag(t, typ, "StateID", "uniqueIndex")
	assertGormTag(t, typ, "StateID", "size:36")
	assertGormTag(t, typ, "ProcedureID", "not null")
	assertGormTag(t, typ, "Step", "not null")
	assertGormTag(t, typ, "Retries", "default:0")
	assertGormTag(t, typ, "CompletedSteps", "type:json")
	assertGormTag(t, typ, "History", "type:json")
	assertGormTag(t, typ, "Menu", "type:json")
	assertGormTag(t, typ, "LastActivityAt", "index")

	assertFieldType(t, typ, "Step", "int")
	assertFieldType(t, typ, "StartedAt", "time.Time")
	assertFieldType(t, typ, "LastActivityAt", "time.Time")
}

func TestModels_Construct(t *testing.T) {
	now := time.Now()
	inc := Incident{
		ID:         "0b1d6f0e-8a4e-4d57-9a57-5b0f5c3f7f11",
		Phone:       "+15550100",
		Issue:       "Fire Panel Reset",
		Outcome:     "resolved",
		Step:        3,
		TotalSteps:  3,
		StartedAt:   &now,
		EndedAt:     now,
	}
	if inc.StartedAt == nil || !inc.StartedAt.Equal(inc.EndedAt) {
		t.Errorf("StartedAt = %v, want %v", inc.StartedAt, now)
	}

	st := ConversationState{Phone: "+15550100", StateID: "s", ProcedureID: "fire-panel", Step: 1}
	if st.Retries != 0 {
		t.Errorf("Retries = %d, want 0", st.Retries)
	}

	for _, tc := range []struct {
		name string
		typ  reflect.Type
	}{
		{"Incident", reflect.TypeOf(Incident{})},
		{"ShiftHandoff", reflect.TypeOf(ShiftHandoff{})},
		{"GuardReport", reflect.TypeOf(GuardReport{})},
		{"ConversationState", reflect.TypeOf(ConversationState{})},
	} {
		if tc.typ.Name() != tc.name {
			t.Errorf("type name = %q, want %q", tc.typ.Name(), tc.name)
		}
		if !strings.Contains(tc.typ.PkgPath(), "internal/models") {
			t.Errorf("%s pkg path = %q", tc.name, tc.typ.PkgPath())
		}
	}
}
