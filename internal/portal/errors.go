package portal

import "errors"

// Sentinel errors for the portal package. Callers classify failures with
// errors.Is; everything the connector and client return wraps one of these.

var (
	// ErrRemoteUnavailable covers transport failures, timeouts and 5xx
	// responses. Transient: the caller retries on the next scheduled run.
	ErrRemoteUnavailable = errors.New("portal unavailable")

	// ErrSessionExpired means the authenticated session is no longer valid
	// and the caller must log in again before retrying.
	ErrSessionExpired = errors.New("portal session expired")

	// ErrAuthorizationRequired means the portal rejected the credentials.
	ErrAuthorizationRequired = errors.New("portal authorization required")

	// ErrCaptchaRequired means the portal is asking for a captcha on login,
	// which cannot be satisfied programmatically.
	ErrCaptchaRequired = errors.New("portal requires captcha confirmation")

	// ErrMalformedResponse means a payload could not be parsed as the
	// expected envelope — a signal the remote contract changed.
	ErrMalformedResponse = errors.New("malformed portal response")

	// ErrNoSuitableMetersFound is raised at setup when the logged-in
	// account exposes no smart meter.
	ErrNoSuitableMetersFound = errors.New("no suitable meters found on the account")
)
