package projectstore

import (
	"errors"
	"strconv"
)

var (
	// ErrStoreInit means the base directory could not be resolved or created.
	ErrStoreInit = errors.New("projectstore: base directory unusable")
	// ErrNotFound means no project file exists for the requested name.
	ErrNotFound = errors.New("projectstore: project not found")
	// ErrIO covers read, write, permission and disk-space failures.
	ErrIO = errors.New("projectstore: i/o error")
	// ErrInvalidName means the name cannot be used as a file name component.
	ErrInvalidName = errors.New("projectstore: invalid project name")
	// ErrInvalidPattern means a ListMatching pattern failed to compile.
	ErrInvalidPattern = errors.New("projectstore: invalid pattern")
)

// Stage names the step of an operation that failed.
type Stage string

const (
	StageResolve    Stage = "resolve"
	StageEncode     Stage = "encode"
	StageCompress   Stage = "compress"
	StageWrite      Stage = "write"
	StageRead       Stage = "read"
	StageDecompress Stage = "decompress"
	StageDecode     Stage = "decode"
	StageScan       Stage = "scan"
)

// OpError records which operation and stage failed, and why.
//
// errors.Is matches both the error kind (ErrIO, ErrNotFound, ...) and the
// underlying cause, so callers can test for codec.ErrCorrupt,
// canvas.ErrFormat or fs.ErrPermission directly.
type OpError struct {
	Op    string // save, load, list, stat
	Name  string // project name, empty for list
	Stage Stage
	Kind  error // one of the package sentinels, or nil when Err carries its own
	Err   error
}

func (e *OpError) Error() string {
	msg := "projectstore: " + e.Op
	if e.Name != "" {
		msg += " " + strconv.Quote(e.Name)
	}
	msg += ": " + string(e.Stage)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	} else if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	return msg
}

func (e *OpError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
