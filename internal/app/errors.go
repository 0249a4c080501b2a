package service

import "errors"

var (
	// ErrBackendUnavailable aborts a report when no user's history could be read.
	ErrBackendUnavailable = errors.New("storage backend unreachable")
	// ErrCollect wraps a storage write failure during collection.
	ErrCollect = errors.New("collect failed")
	// ErrUnknownMode is returned by Run for an unsupported mode.
	ErrUnknownMode = errors.New("unknown run mode")
	// ErrNoUsers is returned when neither configuration nor storage names a user.
	ErrNoUsers = errors.New("no users configured")
)
