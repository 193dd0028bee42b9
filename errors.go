package faceshape

import "errors"

// Sentinel errors returned by the analysis pipeline. Callers are expected to use errors.Is.
var (
	// ErrInvalidRegion is returned for a malformed face box or a box outside the frame.
	// The capture loop skips the frame and continues.
	ErrInvalidRegion = errors.New("invalid face region")

	// ErrEmptyRegion is returned when a degenerate image region reaches feature extraction.
	ErrEmptyRegion = errors.New("empty face region")

	// ErrModelNotLoaded is returned when the learned classifier has no usable model.
	ErrModelNotLoaded = errors.New("face shape model not loaded")

	// ErrInvalidArtifact is returned when a model artifact cannot be normalized into a valid model.
	ErrInvalidArtifact = errors.New("invalid model artifact")

	// ErrNoFace is returned when no face was detected in a frame.
	ErrNoFace = errors.New("no face detected")
)
