package guard

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means the access token was missing, malformed, tampered or expired.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrMemberNotFound means the subject is not a member of the requested site.
	ErrMemberNotFound = errors.New("member not found")

	// ErrForbidden means the member lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// HTTPError lets a guarded handler choose the status and code Serve writes.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Code, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Code)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// rejection marks an error as a decision made by the guard itself. Only
// rejections map to 401/404/403 in Serve; the same sentinels returned by a
// handler are treated like any other handler error.
type rejection struct{ err error }

func (r *rejection) Error() string { return r.err.Error() }

func (r *rejection) Unwrap() error { return r.err }
