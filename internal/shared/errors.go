package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrUnknownConfigKey   = fmt.Errorf("unknown configuration key")

	// Link resolution errors
	ErrInvalidLink         = fmt.Errorf("not a valid link")
	ErrNetworkUnreachable  = fmt.Errorf("network unreachable")
	ErrNotFound            = fmt.Errorf("not found")
	ErrUnsupportedPlatform = fmt.Errorf("unsupported platform")

	// Acquisition and processing errors
	ErrInvalidID            = fmt.Errorf("invalid source id")
	ErrExtractionFailed     = fmt.Errorf("extraction failed")
	ErrEncoderFailed        = fmt.Errorf("encoder failed")
	ErrUnsupportedContainer = fmt.Errorf("unsupported container")
	ErrNoMatch              = fmt.Errorf("no match")
	ErrNoAudioFiles         = fmt.Errorf("no audio files")

	// Engine errors
	ErrAlreadyRunning    = fmt.Errorf("run already in progress")
	ErrAborted           = fmt.Errorf("aborted")
	ErrInvalidTransition = fmt.Errorf("invalid status transition")
	ErrInvalidCoord      = fmt.Errorf("invalid queue coordinate")
	ErrQueueBusy         = fmt.Errorf("queue has active items")
	ErrLocked            = fmt.Errorf("destination is locked by another process")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
