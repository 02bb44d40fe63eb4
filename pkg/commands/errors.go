package commands

import (
	"errors"
	"fmt"

	"github.com/folish/folish/pkg/canvas"
	"github.com/folish/folish/pkg/projectstore"
)

// Error is a command failure as shown to the user. Message is a complete,
// human-readable sentence; the underlying store error stays available to
// errors.Is and errors.As.
type Error struct {
	Command Command
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(cmd Command, cause error, format string, args ...interface{}) *Error {
	return &Error{Command: cmd, Message: fmt.Sprintf(format, args...), cause: cause}
}

// detail returns the innermost useful description of a store error,
// without the projectstore operation prefix.
func detail(err error) string {
	var opErr *projectstore.OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		return opErr.Err.Error()
	}
	return err.Error()
}

// translate maps a store error to the message the user sees.
func translate(cmd Command, filename string, err error) *Error {
	var opErr *projectstore.OpError
	stage := projectstore.Stage("")
	if errors.As(err, &opErr) {
		stage = opErr.Stage
	}

	switch {
	case errors.Is(err, projectstore.ErrInvalidName):
		return newError(cmd, err, "Invalid canvas name: %q", filename)
	case errors.Is(err, projectstore.ErrNotFound):
		return newError(cmd, err, "Folish canvas not found: %s", filename)
	case errors.Is(err, canvas.ErrEncode):
		return newError(cmd, err, "Serialization failed: %s", detail(err))
	case stage == projectstore.StageCompress:
		return newError(cmd, err, "Compression failed: %s", detail(err))
	case stage == projectstore.StageDecompress:
		return newError(cmd, err, "Decompression failed: %s", detail(err))
	case stage == projectstore.StageDecode:
		return newError(cmd, err, "Deserialization failed: %s", detail(err))
	case stage == projectstore.StageScan:
		return newError(cmd, err, "Failed to read canvases directory: %s", detail(err))
	case stage == projectstore.StageWrite:
		return newError(cmd, err, "Failed to write canvas %s: %s", filename, detail(err))
	case stage == projectstore.StageRead:
		return newError(cmd, err, "Failed to read canvas %s: %s", filename, detail(err))
	}
	return newError(cmd, err, "%s failed: %s", cmd, err)
}
