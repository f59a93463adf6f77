// Package stt provides the speech-to-text capability behind the turn
// pipeline.
package stt

import "context"

// Provider is the transcriber contract. The pipeline makes a single attempt
// per turn; retrying a half-completed transcription is the caller's call.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Transcribe converts an audio clip to text plus a confidence in [0,1].
	Transcribe(ctx context.Context, audio []byte, opts TranscribeOptions) (*Transcript, error)
}

// TranscribeOptions configures transcription.
type TranscribeOptions struct {
	Model      string // Provider-specific model
	Language   string // BCP-47 language tag (e.g. "en-US")
	Format     string // Audio format hint (wav, mp3, webm, ...)
	SampleRate int    // Audio sample rate in Hz
}

// Transcript is the result of transcription.
type Transcript struct {
	Text       string  // Full transcribed text
	Confidence float64 // Confidence in [0,1]; 1 when the provider reports none
	Language   string  // Detected or specified language
	Duration   float64 // Audio duration in seconds
}
