package speech

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNoSpeech is returned when audio contains no recognizable words.
	ErrNoSpeech = errors.New("speech: no speech recognized")

	// ErrNoAudio is returned when an empty audio buffer is submitted.
	ErrNoAudio = errors.New("speech: no audio data")

	// ErrNoSink is returned when a speaker has nowhere to send audio.
	ErrNoSink = errors.New("speech: no audio sink configured")

	// ErrSourceClosed is returned when using a closed audio source.
	ErrSourceClosed = errors.New("speech: audio source closed")
)

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("speech [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
