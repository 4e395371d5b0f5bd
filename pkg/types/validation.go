package types

import "regexp"

var idRegex = regexp.MustCompile(`^[A-Za-z0-9_.:@-]+$`)

// Validate checks the fields the payload's handler cannot work without.

func (p *JoinPayload) Validate() error {
	if !IsValidID(p.UserID) || p.Room == "" {
		return ErrMissingField
	}
	return nil
}

func (p *JoinClassroomPayload) Validate() error {
	if !IsValidID(p.UserID) || !IsValidID(p.ClassroomID) {
		return ErrMissingField
	}
	return nil
}

func (p *ClassroomActionPayload) Validate() error {
	if !IsValidID(p.ClassroomID) {
		return ErrMissingField
	}
	switch p.Action {
	case ActionAccept, ActionReject, ActionRemove:
		if !IsValidID(p.StudentID) {
			return ErrMissingField
		}
	case ActionToggleState:
		if p.State == "" {
			return ErrInvalidState
		}
	default:
		return ErrUnknownAction
	}
	return nil
}

func (p *LeaveClassroomPayload) Validate() error {
	if !IsValidID(p.UserID) || !IsValidID(p.ClassroomID) {
		return ErrMissingField
	}
	return nil
}

func (p *ClassroomRequestPayload) Validate() error {
	if !IsValidID(p.StudentID) || !IsValidID(p.ClassroomID) {
		return ErrMissingField
	}
	return nil
}

func (p *JoinVideoRoomPayload) Validate() error {
	if !IsValidID(p.Room) || !IsValidID(p.UserID) {
		return ErrMissingField
	}
	return nil
}

func (p *SignalPayload) Validate() error {
	if p.To == "" {
		return ErrMissingField
	}
	if len(p.Data) > MaxSignalBytes {
		return ErrPayloadTooLarge
	}
	return nil
}

// MaxSignalBytes bounds a relayed SDP/ICE blob.
const MaxSignalBytes = 64 * 1024

// IsValidID accepts 1-100 characters of letters, digits and _.:@-.
func IsValidID(id string) bool {
	if len(id) < 1 || len(id) > 100 {
		return false
	}
	return idRegex.MatchString(id)
}
