package client

import "errors"

var (
	// ErrDaemonNotRunning means the daemon socket is absent or refuses
	// connections.
	ErrDaemonNotRunning = errors.New("daemon not running")

	// ErrPermissionDenied means the socket exists but this user may not
	// open it.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound maps 404 responses, including unknown line names.
	ErrNotFound = errors.New("not found")
)
