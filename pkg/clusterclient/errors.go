package clusterclient

import (
	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// ErrorClass distinguishes errors the orchestrator API can hand back:
// Transient ones are worth retrying, Terminal ones are not.
type ErrorClass int

const (
	Terminal ErrorClass = iota
	Transient
)

// Classify buckets an error returned from the orchestrator API into
// Transient (timeout, 5xx, conflict, connection reset) or Terminal (the
// request itself is wrong and retrying it verbatim will not help).
//
// Anything that isn't a recognized apimachinery status error -- a raw
// connection reset, context deadline, io.EOF from a dropped stream -- is
// treated as Transient, matching the source's practice of retrying on any
// unrecognized failure rather than giving up.
func Classify(err error) ErrorClass {
	if err == nil {
		return Terminal
	}
	switch {
	case apierrors.IsNotFound(err),
		apierrors.IsInvalid(err),
		apierrors.IsBadRequest(err),
		apierrors.IsForbidden(err),
		apierrors.IsUnauthorized(err),
		apierrors.IsMethodNotSupported(err),
		apierrors.IsNotAcceptable(err),
		apierrors.IsUnsupportedMediaType(err):
		return Terminal
	default:
		return Transient
	}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return Classify(err) == Transient
}
