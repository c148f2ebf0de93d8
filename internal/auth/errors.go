package auth

import "fmt"

const (
	OpInitiate = "initiate"
	OpRefresh  = "refresh"
)

// Error is a failed credential exchange. It is not retried: a failed initiate
// usually means bad credentials, a failed refresh means the refresh token was rejected.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("auth %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
