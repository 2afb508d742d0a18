package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a remote API failure. Callers use it to pick the right
// corrective action: re-enter the credential, re-fetch and reapply, or
// retry later.
type Kind string

const (
	// KindNotFound indicates the remote object does not exist. Not
	// necessarily fatal; loading an absent collection seeds an empty one.
	KindNotFound Kind = "not_found"
	// KindUnauthorized indicates a bad or missing credential.
	KindUnauthorized Kind = "unauthorized"
	// KindForbidden indicates the credential lacks the required scope.
	KindForbidden Kind = "forbidden"
	// KindConflict indicates the version token presented with a write was
	// stale because the remote object changed since it was read.
	KindConflict Kind = "conflict"
	// KindTransient indicates a network or server failure that is safe to
	// retry.
	KindTransient Kind = "transient"
	// KindMalformed indicates a payload that did not decode as the
	// expected JSON shape.
	KindMalformed Kind = "malformed"
	// KindCredentialMissing indicates an operation was rejected locally
	// because no credential was supplied. No request was sent.
	KindCredentialMissing Kind = "credential_missing"
)

// Error describes a failed remote operation.
type Error struct {
	Kind    Kind
	Status  int // HTTP status, 0 when the failure never produced a response
	Path    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// newError constructs an Error for the given kind and path.
func newError(kind Kind, status int, path, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Status:  status,
		Path:    path,
		Message: message,
		cause:   cause,
	}
}

// MissingCredential reports an operation rejected before any network call
// because the session holds no credential.
func MissingCredential(path string) *Error {
	return newError(KindCredentialMissing, 0, path, "no credential supplied", nil)
}

// Classify maps an HTTP status code to an error Kind. The mapping is
// independent of call site so every caller interprets a status the same
// way.
func Classify(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict, http.StatusPreconditionFailed, http.StatusUnprocessableEntity:
		return KindConflict
	default:
		return KindTransient
	}
}

// KindOf extracts the Kind from an error. Errors that did not originate
// from this package report KindTransient, the only safe assumption for an
// unclassified failure.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindTransient
}

// IsNotFound reports whether err indicates an absent remote object.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
