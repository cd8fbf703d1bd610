package adapter

import (
	"context"
	"errors"
)

// GenerateRequest is one deterministic image-generation call. The prompt
// already includes subject metadata, variant styling and the style anchor;
// reference images condition the model on actual frames of the subject.
type GenerateRequest struct {
	Prompt          string
	ReferenceImages [][]byte
	OutputClass     string // aspect bucket, e.g. "thumbnail" (16:9) or "vertical" (9:16)
}

// ImageGenerator is the port for the external generation capability.
// Implementations must classify failures with Transient or Permanent so
// the orchestrator can decide whether a retry is worthwhile.
type ImageGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]byte, error)
	Edit(ctx context.Context, base []byte, instruction string) ([]byte, error)
}

// TransientError marks a failure worth retrying (overload, timeouts,
// unknown RPC-level errors).
type TransientError struct{ Err error }

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying cannot fix (malformed
// input, policy rejection, empty result).
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsTransient reports whether err (anywhere in its chain) is retryable.
// Unclassified errors are treated as transient: the upstream failure mode
// we cannot name is more often overload than bad input.
func IsTransient(err error) bool {
	var pe *PermanentError
	if errors.As(err, &pe) {
		return false
	}
	return true
}
