package cloud

import (
	"errors"
	"fmt"
)

var (
	// ErrMetadataUnavailable is returned when the droplet metadata endpoint cannot be read
	ErrMetadataUnavailable = errors.New("droplet metadata unavailable")

	// ErrRemoteActionFailed is returned when an attach or detach action resolves to an error status
	ErrRemoteActionFailed = errors.New("remote volume action failed")

	// ErrAttachmentFailed is returned when an attach action errored
	ErrAttachmentFailed = fmt.Errorf("volume attachment failed: %w", ErrRemoteActionFailed)

	// ErrDetachmentFailed is returned when a detach action errored
	ErrDetachmentFailed = fmt.Errorf("volume detachment failed: %w", ErrRemoteActionFailed)

	// ErrTimeout is returned when an action does not reach a terminal status in time
	ErrTimeout = errors.New("timed out waiting for volume action")
)

// errActionPending signals the poller that an action is still in progress.
var errActionPending = errors.New("action in progress")
