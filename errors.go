package nnsplit

import "errors"

// Sentinel errors for conditions callers may need to handle differently.
var (
	// ErrInvalidOptions indicates a split option is out of range.
	ErrInvalidOptions = errors.New("nnsplit: invalid options")

	// ErrModelNotFound indicates the model file does not exist.
	ErrModelNotFound = errors.New("nnsplit: model file not found")

	// ErrMalformedMetadata indicates the model's split_sequence metadata is
	// missing, unparseable, or disagrees with the model's output channels.
	ErrMalformedMetadata = errors.New("nnsplit: malformed model metadata")

	// ErrModelFailure indicates the inference backend failed to produce
	// predictions for a batch.
	ErrModelFailure = errors.New("nnsplit: model failure")
)
