package gate

import (
	"errors"
	"strings"
)

var (
	ErrInvalidFace      = errors.New("invalid face")
	ErrSolidity         = errors.New("wrong solidity")
	ErrAmbiguousAxis    = errors.New("ambiguous plane")
	ErrNotTouching      = errors.New("anchors not touching")
	ErrUnclassifiedStep = errors.New("unable to classify boundary case")
	ErrSingleVoxel      = errors.New("single voxel")
	ErrDeadEnd          = errors.New("dead end")
	ErrPathTooLong      = errors.New("path too long")
	ErrAnchorNotVisited = errors.New("required voxel not visited")
	ErrNotConvex        = errors.New("not convex")
	ErrSolidInterior    = errors.New("solid voxel inside gate")
	ErrWrongFace        = errors.New("wrong face selected")
)

// GeometryError is returned when a gate cannot be built.
// Diagnostic is meant for logs, UserReason may be shown to players.
type GeometryError struct {
	Cause      error
	Diagnostic string
	UserReason string
}

func (e *GeometryError) Error() string { return e.Diagnostic }
func (e *GeometryError) Unwrap() error { return e.Cause }

// newGeometryError uses the diagnostic as user reason unless one is given.
// A single trailing period is removed from the user reason.
func newGeometryError(cause error, diagnostic string, userReason ...string) *GeometryError {
	reason := diagnostic
	if len(userReason) > 0 {
		reason = userReason[0]
	}
	return &GeometryError{
		Cause:      cause,
		Diagnostic: diagnostic,
		UserReason: strings.TrimSuffix(reason, "."),
	}
}

// UserReason extracts the player facing reason of err.
func UserReason(err error) string {
	var ge *GeometryError
	if errors.As(err, &ge) {
		return ge.UserReason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
