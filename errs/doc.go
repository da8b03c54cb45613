// Package errs is a helper package for the plain Go language error type. We
// think of these errors as curated errors: external to this package they are
// referenced as plain errors (ie. they implement the error interface) but
// each one also carries an Errno identifying which of the five kinds named
// in the engine's error taxonomy it belongs to (project, architecture,
// memory, solver, engine).
//
// Internally, errors are thought of as being composed of parts, as described
// by The Go Programming Language (Donovan, Kernighan): "When the error is
// ultimately handled by the program's main function, it should provide a
// clear causal chain from the root of the problem to the overall failure".
//
// The Error() function implementation for curated errors ensures that this
// chain is normalised: it does not contain duplicate adjacent parts. This
// alleviates the problem of when and how to wrap errors, since a caller can
// always prefix its own category message without worrying whether the
// callee already added the same prefix.
package errs
