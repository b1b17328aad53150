package checkin

import "errors"

var (
	// ErrAlreadyCheckedIn means a check-in already exists for this employee
	// at this event.
	ErrAlreadyCheckedIn = errors.New("already checked in")
	// ErrSessionClosed means the check-in window is not open.
	ErrSessionClosed = errors.New("check-in session is closed")
	// ErrNotOnRoster means the employee id is not on the event's roster.
	ErrNotOnRoster = errors.New("employee not on roster")
)
