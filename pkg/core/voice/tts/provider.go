// Package tts provides the text-to-speech capability. Synthesis is a
// separate call from turn processing: some callers want text only.
package tts

import "context"

// Provider is the synthesizer contract.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts reply text to an audio clip.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)
}

// SynthesizeOptions configures synthesis.
type SynthesizeOptions struct {
	Voice      string  // Voice identifier
	Language   string  // Language code
	Format     string  // Output format: "wav", "mp3", or "pcm"
	SampleRate int     // Sample rate in Hz
	Speed      float64 // Speed multiplier (0.6-1.5)
}

// Synthesis is the result of synthesis.
type Synthesis struct {
	Audio      []byte
	Format     string
	SampleRate int
}
