package notify

import "errors"

var (
	// ErrNotConfigured is returned when server, sender, password or
	// recipients are missing.
	ErrNotConfigured = errors.New("email not configured")
	// ErrSend wraps SMTP failures.
	ErrSend = errors.New("email send failed")
)
