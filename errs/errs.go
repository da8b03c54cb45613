package errs

import (
	"fmt"
	"strings"
)

// Category partitions the Errno space into the five error kinds named in
// the engine's error handling design: project, architecture, memory, solver
// and engine errors. The path-level propagation policy (terminate the path
// vs abort the whole run) is decided by category, not by individual Errno.
type Category int

const (
	Project Category = iota
	Architecture
	Memory
	Solver
	Engine
)

// String returns a human-readable name for the category.
func (c Category) String() string {
	switch c {
	case Project:
		return "project"
	case Architecture:
		return "architecture"
	case Memory:
		return "memory"
	case Solver:
		return "solver"
	case Engine:
		return "engine"
	default:
		return "unknown"
	}
}

// curated is an implementation of the go language error interface.
type curated struct {
	errno   Errno
	message string
	values  []interface{}
}

// Errorf creates a new curated error for the given Errno. Unlike
// fmt.Errorf the message isn't looked up automatically: the message
// constants in messages.go are associative with the Errno constants in
// errno.go only by convention (see Head/Is), so Errorf always takes the
// format string explicitly.
func Errorf(errno Errno, message string, values ...interface{}) error {
	return curated{
		errno:   errno,
		message: message,
		values:  values,
	}
}

// Error returns the normalised error message. Normalisation being the
// removal of duplicate adjacent error message parts in the error message
// chain. It doesn't affect letter-case or white space.
//
// Implements the go language error interface.
func (er curated) Error() string {
	s := fmt.Errorf(er.message, er.values...).Error()

	p := strings.SplitN(s, ": ", 3)
	if len(p) > 1 && p[0] == p[1] {
		return strings.Join(p[1:], ": ")
	}

	return strings.Join(p, ": ")
}

// Category returns which of the five error kinds this Errno belongs to.
func (e Errno) Category() Category {
	switch {
	case e < architectureBase:
		return Project
	case e < memoryBase:
		return Architecture
	case e < solverBase:
		return Memory
	case e < engineBase:
		return Solver
	default:
		return Engine
	}
}

// IsAny reports whether err is a curated error from this package.
func IsAny(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(curated)
	return ok
}

// Is reports whether err is a curated error with the given Errno.
func Is(err error, errno Errno) bool {
	if err == nil {
		return false
	}
	if er, ok := err.(curated); ok {
		return er.errno == errno
	}
	return false
}

// Has reports whether errno appears anywhere in err's curated chain.
func Has(err error, errno Errno) bool {
	if err == nil {
		return false
	}
	er, ok := err.(curated)
	if !ok {
		return false
	}
	if er.errno == errno {
		return true
	}
	for _, v := range er.values {
		if e, ok := v.(curated); ok {
			if Has(e, errno) {
				return true
			}
		}
	}
	return false
}

// AsErrno returns the curated Errno of err, or false if err is not a curated
// error.
func AsErrno(err error) (Errno, bool) {
	if err == nil {
		return 0, false
	}
	if er, ok := err.(curated); ok {
		return er.errno, true
	}
	return 0, false
}

// Head returns the leading (unformatted) message of the error, or the plain
// Error() string if err is not curated. Useful in switch statements.
func Head(err error) string {
	if er, ok := err.(curated); ok {
		return er.message
	}
	return err.Error()
}
