package authflow

import "errors"

// ErrCIRestricted marks interactive sign-in refused in a CI environment.
// Raised before any network traffic.
var ErrCIRestricted = errors.New("interactive sign-in is not available in a CI environment; supply service-principal credentials instead")

// AuthError reports a failed token acquisition for one flow. Acquisition
// failures are fatal for the run (never retried automatically) and the
// message never carries secret material.
type AuthError struct {
	Flow string
	Err  error
}

func (e *AuthError) Error() string {
	return "authflow: " + e.Flow + ": " + e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
