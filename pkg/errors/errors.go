package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/livekit/psrpc"
)

var (
	ErrNoConfig          = errors.New("missing config")
	ErrNoViewers         = errors.New("no viewers registered")
	ErrNoFrameRate       = errors.New("no frame rate available")
	ErrNoVariables       = errors.New("no variables to add a cell to")
	ErrNoLastCreatedCell = errors.New("no cell has been created")
	ErrViewerClosed      = errors.New("viewer closed")
	ErrViewerBusy        = errors.New("viewer command queue full")
	ErrViewerExists      = errors.New("viewer already registered")
	ErrNothingToUndo     = errors.New("nothing to undo")
	ErrNothingToRedo     = errors.New("nothing to redo")
	ErrUnknownCommand    = errors.New("unknown command")
	ErrSessionClosed     = errors.New("session closed")
)

func New(err string) error {
	return errors.New(err)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func ErrCouldNotParseConfig(err error) error {
	return fmt.Errorf("could not parse config: %v", err)
}

func ErrInvalidConfig(field string) error {
	return fmt.Errorf("config has missing or invalid field: %s", field)
}

func ErrRateNotInTable(rate float64) error {
	return psrpc.NewErrorf(psrpc.NotFound, "rate %g is not a shuttle rate", rate)
}

func ErrRateOutOfTable(rate float64, jump int) error {
	return psrpc.NewErrorf(psrpc.OutOfRange, "cannot shuttle %+d from rate %g", jump, rate)
}

func ErrMalformedTimestamp(value string) error {
	return psrpc.NewErrorf(psrpc.InvalidArgument, "malformed timestamp %q, expected HH:mm:ss:SSS", value)
}

func ErrViewerNotFound(viewerID string) error {
	return psrpc.NewErrorf(psrpc.NotFound, "viewer %s not found", viewerID)
}

func ErrViewerTimeout(viewerID, op string) error {
	return psrpc.NewErrorf(psrpc.DeadlineExceeded, "viewer %s did not answer %s in time", viewerID, op)
}

func ErrViewerPanic(viewerID string, r any) error {
	return psrpc.NewErrorf(psrpc.Internal, "viewer %s panicked: %v", viewerID, r)
}

func ErrCellNotFound(cellID string) error {
	return psrpc.NewErrorf(psrpc.NotFound, "cell %s not found", cellID)
}

func ErrVariableNotFound(name string) error {
	return psrpc.NewErrorf(psrpc.NotFound, "variable %s not found", name)
}

func ErrInvalidArgument(field string, value any) error {
	return psrpc.NewErrorf(psrpc.InvalidArgument, "invalid %s: %v", field, value)
}

func ErrProfileNotFound(name string) error {
	return psrpc.NewErrorf(psrpc.NotFound, "profile %s not found", name)
}

type ErrArray struct {
	errs []error
}

func (e *ErrArray) AppendErr(err error) {
	if err != nil {
		e.errs = append(e.errs, err)
	}
}

func (e *ErrArray) Len() int {
	return len(e.errs)
}

// ToError joins the collected errors, keeping the first psrpc code found.
func (e *ErrArray) ToError() psrpc.Error {
	if len(e.errs) == 0 {
		return nil
	}

	code := psrpc.Unknown
	msg := make([]string, 0, len(e.errs))
	for _, err := range e.errs {
		if code == psrpc.Unknown {
			var pErr psrpc.Error
			if errors.As(err, &pErr) {
				code = pErr.Code()
			}
		}
		msg = append(msg, err.Error())
	}

	return psrpc.NewErrorf(code, "%s", strings.Join(msg, "\n"))
}
