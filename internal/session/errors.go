package session

import "fmt"

// Reason classifies an authentication failure.
type Reason string

const (
	MissingCredentials  Reason = "missing credentials"
	RejectedCredentials Reason = "rejected credentials"
	Timeout             Reason = "timeout"
)

// AuthError is returned by Manager.Ensure when a session cannot be
// established. It is fatal for a crawl.
type AuthError struct {
	Reason Reason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "authentication failed: " + string(e.Reason)
	}
	return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
