package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestIsValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"s1", true},
		{"user@example.org", true},
		{"room:math-101_a.b", true},
		{"", false},
		{"has space", false},
		{"semi;colon", false},
		{strings.Repeat("a", 100), true},
		{strings.Repeat("a", 101), false},
	}
	for _, tt := range tests {
		if got := IsValidID(tt.id); got != tt.want {
			t.Errorf("IsValidID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestClassroomActionPayload_Validate(t *testing.T) {
	tests := []struct {
		name    string
		payload ClassroomActionPayload
		wantErr error
	}{
		{"accept", ClassroomActionPayload{Action: ActionAccept, StudentID: "s1", ClassroomID: "math"}, nil},
		{"remove without student", ClassroomActionPayload{Action: ActionRemove, ClassroomID: "math"}, ErrMissingField},
		{"toggle locked", ClassroomActionPayload{Action: ActionToggleState, ClassroomID: "math", State: "locked"}, nil},
		{"toggle any state", ClassroomActionPayload{Action: ActionToggleState, ClassroomID: "math", State: "archived"}, nil},
		{"toggle empty state", ClassroomActionPayload{Action: ActionToggleState, ClassroomID: "math"}, ErrInvalidState},
		{"unknown action", ClassroomActionPayload{Action: "promote", StudentID: "s1", ClassroomID: "math"}, ErrUnknownAction},
		{"missing classroom", ClassroomActionPayload{Action: ActionAccept, StudentID: "s1"}, ErrMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPayloads_RequireIdentifiers(t *testing.T) {
	invalid := []interface{ Validate() error }{
		&JoinPayload{UserID: "u1"},
		&JoinClassroomPayload{UserID: "u1"},
		&LeaveClassroomPayload{ClassroomID: "math"},
		&ClassroomRequestPayload{StudentName: "Sam", ClassroomID: "math"},
		&JoinVideoRoomPayload{UserID: "u1"},
		&SignalPayload{Data: json.RawMessage(`{}`)},
	}
	for _, p := range invalid {
		if err := p.Validate(); !errors.Is(err, ErrMissingField) {
			t.Errorf("%T: expected ErrMissingField, got %v", p, err)
		}
	}
}

func TestSignalPayload_SizeLimit(t *testing.T) {
	big := json.RawMessage(`"` + strings.Repeat("x", MaxSignalBytes) + `"`)
	p := SignalPayload{To: "c2", Data: big}
	if err := p.Validate(); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestMovePayload_PartialUpdate(t *testing.T) {
	var p MovePayload
	if err := json.Unmarshal([]byte(`{"x":5}`), &p); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if p.X == nil || *p.X != 5 || p.Y != nil || p.Z != nil {
		t.Errorf("Expected only x set, got %+v", p)
	}
}

func TestEncodeFrame(t *testing.T) {
	frame, err := EncodeFrame(EventClassroomUpdate, Roster{Students: []Identity{}, Pending: []Identity{}})
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}
	want := `{"event":"classroomUpdate","data":{"students":[],"pending":[],"teacher":null}}`
	if string(frame) != want {
		t.Errorf("Expected %s, got %s", want, frame)
	}

	if _, err := EncodeFrame("bad", make(chan int)); err == nil {
		t.Error("Expected error for unencodable payload")
	}
}

func TestEffectHelpers(t *testing.T) {
	e := BroadcastExcept(ClassroomGroup("math"), "c1", EventStudentJoined, Identity{ID: "s1"})
	if e.Kind != EffectBroadcast || e.Group != "classroom-math" || e.Except != "c1" {
		t.Errorf("Unexpected effect %+v", e)
	}
	if WorldGroup("classroom-math") == ClassroomGroup("math") {
		t.Error("Expected world rooms in their own namespace")
	}
	if VideoGroup("math") != "video-math" {
		t.Errorf("Unexpected video group %s", VideoGroup("math"))
	}
}
