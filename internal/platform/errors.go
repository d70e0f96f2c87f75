package platform

import "errors"

var (
	// ErrNotFound reports that the referenced guild, member, role, ban,
	// channel or message no longer exists.
	ErrNotFound = errors.New("platform: not found")
	// ErrPermissionDenied reports that the bot lacks the privilege for the
	// attempted mutation.
	ErrPermissionDenied = errors.New("platform: permission denied")
)
