package race

import (
	"errors"

	"github.com/mpapenbr/gaterace-service-go/pkg/gate"
)

var (
	ErrTrackNotFound = errors.New("track not found")
	ErrBrokenGates   = errors.New("track has broken gates")
	ErrNotBuilding   = errors.New("not building a track")
	ErrBlankName     = errors.New("blank track name")
	ErrInvalidName   = errors.New("invalid track name")
	ErrNameTaken     = errors.New("track name taken")
	ErrUnnamed       = errors.New("track unnamed")
	ErrTooFewGates   = errors.New("too few gates")
	ErrMaxGates      = errors.New("max gates reached")
	ErrTrackExists   = errors.New("track exists")
	ErrNotSolid      = errors.New("gate block not solid")
	ErrNoGate        = errors.New("no gate found")
	ErrAmbiguousGate = errors.New("ambiguous gate")
	ErrUnresolved    = errors.New("gate choice not resolved")
	ErrGateFailed    = errors.New("gate build failed")
)

// SessionError carries the message shown to the participant next to the
// cause that can be checked with errors.Is.
type SessionError struct {
	Cause   error
	Message string
}

func (e *SessionError) Error() string { return e.Message }
func (e *SessionError) Unwrap() error { return e.Cause }

func NewSessionError(cause error, message string) *SessionError {
	return &SessionError{Cause: cause, Message: message}
}

// UserMessage returns the text a participant should see for err.
func UserMessage(err error) string {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Message
	}
	return gate.UserReason(err)
}
