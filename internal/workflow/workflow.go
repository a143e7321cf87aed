// Package workflow holds the project lifecycle transition table. It has no
// storage or transport dependencies so the rules can be checked in isolation.
package workflow

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of a project.
type Status string

const (
	StatusPending           Status = "pending"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
	StatusWithdrawn         Status = "withdrawn"
	StatusFeedbackRequested Status = "feedback_requested"
)

// Action is a named lifecycle operation.
type Action string

const (
	ActionSubmit          Action = "submit"
	ActionEdit            Action = "edit"
	ActionWithdraw        Action = "withdraw"
	ActionResubmit        Action = "resubmit"
	ActionImprove         Action = "improve"
	ActionApprove         Action = "approve"
	ActionReject          Action = "reject"
	ActionRequestFeedback Action = "request_feedback"
	ActionDelete          Action = "delete"
)

// Role identifies who is acting on a project.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

var (
	// ErrInvalidTransition is returned when an action is not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrActionNotPermitted is returned when the actor's role may not perform the action.
	ErrActionNotPermitted = errors.New("action not permitted for role")
)

type rule struct {
	from     []Status
	to       Status
	roles    []Role
	owner    bool
	appendsV bool
}

var rules = map[Action]rule{
	ActionSubmit:          {to: StatusPending, roles: []Role{RoleStudent}, appendsV: true},
	ActionEdit:            {from: []Status{StatusPending}, to: StatusPending, roles: []Role{RoleStudent}, owner: true},
	ActionWithdraw:        {from: []Status{StatusPending}, to: StatusWithdrawn, roles: []Role{RoleStudent}, owner: true},
	ActionResubmit:        {from: []Status{StatusRejected, StatusWithdrawn, StatusFeedbackRequested}, to: StatusPending, roles: []Role{RoleStudent}, owner: true, appendsV: true},
	ActionImprove:         {from: []Status{StatusApproved, StatusRejected, StatusWithdrawn, StatusFeedbackRequested}, to: StatusPending, roles: []Role{RoleStudent}, owner: true, appendsV: true},
	ActionApprove:         {from: []Status{StatusPending}, to: StatusApproved, roles: []Role{RoleTeacher}, appendsV: true},
	ActionReject:          {from: []Status{StatusPending}, to: StatusRejected, roles: []Role{RoleTeacher}},
	ActionRequestFeedback: {from: []Status{StatusPending}, to: StatusFeedbackRequested, roles: []Role{RoleTeacher}},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusWithdrawn, StatusFeedbackRequested:
		return true
	}
	return false
}

// ParseStatus converts raw input into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// Next returns the status reached by applying action to from. Submit ignores from.
func Next(from Status, action Action) (Status, error) {
	r, ok := rules[action]
	if !ok {
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	if action == ActionSubmit {
		return r.to, nil
	}
	for _, allowed := range r.from {
		if allowed == from {
			return r.to, nil
		}
	}
	return "", fmt.Errorf("%w: cannot %s a %s project", ErrInvalidTransition, action, from)
}

// Permitted checks the actor's role and ownership against the action.
// Delete is allowed for the owning student and for any teacher.
func Permitted(action Action, role Role, isOwner bool) error {
	if action == ActionDelete {
		if role == RoleTeacher || (role == RoleStudent && isOwner) {
			return nil
		}
		return fmt.Errorf("%w: %s may not delete this project", ErrActionNotPermitted, role)
	}

	r, ok := rules[action]
	if !ok {
		return fmt.Errorf("%w: unknown action %q", ErrActionNotPermitted, action)
	}
	roleOK := false
	for _, allowed := range r.roles {
		if allowed == role {
			roleOK = true
			break
		}
	}
	if !roleOK {
		return fmt.Errorf("%w: %s may not %s", ErrActionNotPermitted, role, action)
	}
	if r.owner && !isOwner {
		return fmt.Errorf("%w: only the owner may %s", ErrActionNotPermitted, action)
	}
	return nil
}

// AppendsVersion reports whether the action records a new version snapshot.
func AppendsVersion(action Action) bool {
	return rules[action].appendsV
}

// Priority orders statuses for the status sort. Unknown statuses sort last.
func Priority(s Status) int {
	switch s {
	case StatusPending:
		return 0
	case StatusApproved:
		return 1
	case StatusRejected:
		return 2
	case StatusWithdrawn:
		return 3
	case StatusFeedbackRequested:
		return 4
	}
	return 5
}
