// Package speech provides voice input and output for the robot.
//
// The package has three pieces: a Source that turns the microphone
// stream from the bridge into discrete utterances, a Recognizer that
// transcribes an utterance to text, and a Speaker that synthesizes a
// spoken reply. The Google Cloud implementations talk to the Speech and
// Text-to-Speech REST APIs; mocks cover everything in tests.
//
// Example usage:
//
//	rec, _ := speech.NewGoogleRecognizer(ctx,
//	    speech.WithRecognizerLanguage("en-US"),
//	)
//	defer rec.Close()
//
//	text, _ := rec.Recognize(ctx, pcm, 16000)
//	// text contains the transcript of the utterance
package speech

import "context"

// Recognizer transcribes spoken audio to text.
//
// The audio is 16-bit little-endian mono PCM at the given sample rate.
// Implementations return ErrNoSpeech (wrapped) when the audio contains
// no recognizable words.
type Recognizer interface {
	// Recognize transcribes a single utterance.
	Recognize(ctx context.Context, pcm []byte, sampleRate int) (string, error)

	// Close releases any resources held by the recognizer.
	Close() error
}

// Speaker converts text to audible speech.
type Speaker interface {
	// Speak synthesizes text and delivers the audio to the configured
	// sink. It blocks until the audio has been handed off, not until
	// playback finishes.
	Speak(ctx context.Context, text string) error

	// Close releases any resources held by the speaker.
	Close() error
}

// Sink receives synthesized audio from a Speaker. The audio is 16-bit
// little-endian mono PCM at the given sample rate.
type Sink func(pcm []byte, sampleRate int) error
