package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/voxcart/voxcart/pkg/core"
	"github.com/voxcart/voxcart/pkg/core/types"
	"github.com/voxcart/voxcart/pkg/core/voice/tts"
	"github.com/voxcart/voxcart/pkg/gateway/config"
	"github.com/voxcart/voxcart/pkg/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testConfig() config.Config {
	return config.Config{
		AuthMode:      config.AuthModeDisabled,
		MaxBodyBytes:  1 << 20,
		MaxAudioBytes: 512 << 10,
		VoiceID:       "voice_default",
		AudioFormat:   "mp3",
	}
}

type fakeManager struct {
	created    *pipeline.CreateParams
	createSess *types.Session
	createErr  error

	getSess *types.Session
	getErr  error

	pauseState  types.SessionState
	pauseErr    error
	resumeState types.SessionState
	resumeErr   error
	// lifecycleMissing makes Pause/Resume report an absent session.
	lifecycleMissing bool

	endedID    string
	endedScore *int
	summary    *types.Summary
	endErr     error
}

func (f *fakeManager) Create(ctx context.Context, params pipeline.CreateParams) (*types.Session, error) {
	f.created = &params
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createSess != nil {
		return f.createSess, nil
	}
	return &types.Session{ID: "sess_new", State: types.StateActive, UserID: params.UserID}, nil
}

func (f *fakeManager) Get(ctx context.Context, id string) (*types.Session, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.getSess != nil {
		return f.getSess, nil
	}
	return nil, core.NewNotFoundError("session not found")
}

func (f *fakeManager) Pause(ctx context.Context, id string) (types.SessionState, error) {
	if f.pauseErr != nil {
		return "", f.pauseErr
	}
	if f.lifecycleMissing {
		return "", nil
	}
	if f.pauseState != "" {
		return f.pauseState, nil
	}
	return types.StatePaused, nil
}

func (f *fakeManager) Resume(ctx context.Context, id string) (types.SessionState, error) {
	if f.resumeErr != nil {
		return "", f.resumeErr
	}
	if f.lifecycleMissing {
		return "", nil
	}
	if f.resumeState != "" {
		return f.resumeState, nil
	}
	return types.StateActive, nil
}

func (f *fakeManager) End(ctx context.Context, id string, score *int) (*types.Summary, error) {
	f.endedID = id
	f.endedScore = score
	if f.endErr != nil {
		return nil, f.endErr
	}
	if f.summary != nil {
		return f.summary, nil
	}
	return &types.Summary{SessionID: id, State: types.StateCompleted, EndedAt: time.Now()}, nil
}

type fakeProcessor struct {
	gotSessionID   string
	gotAudio       []byte
	gotLanguage    string
	gotDeadline    time.Time
	gotHasDeadline bool
	outcome        *types.TurnOutcome
	err            error
}

func (f *fakeProcessor) ProcessTurn(ctx context.Context, sessionID string, audio []byte, languageHint string) (*types.TurnOutcome, error) {
	f.gotSessionID = sessionID
	f.gotAudio = audio
	f.gotLanguage = languageHint
	f.gotDeadline, f.gotHasDeadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	if f.outcome != nil {
		return f.outcome, nil
	}
	return &types.TurnOutcome{
		SessionID:  sessionID,
		Transcript: "find me a red dress",
		Confidence: 0.93,
		Reply:      "Here is what I found for red dress.",
		Intent:     "product_search",
		Usage:      types.Usage{InputTokens: 42, OutputTokens: 17},
	}, nil
}

type fakeSynth struct {
	gotText        string
	gotOpts        tts.SynthesizeOptions
	gotHasDeadline bool
	audio          []byte
	format         string
	err            error
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOptions) (*tts.Synthesis, error) {
	f.gotText = text
	f.gotOpts = opts
	_, f.gotHasDeadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	format := f.format
	if format == "" {
		format = opts.Format
	}
	return &tts.Synthesis{Audio: f.audio, Format: format}, nil
}

func decodeErrorEnvelope(t *testing.T, body []byte) *core.Error {
	t.Helper()
	var env struct {
		Error *core.Error `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode error envelope: %v (body %q)", err, body)
	}
	if env.Error == nil {
		t.Fatalf("error envelope missing error field: %q", body)
	}
	return env.Error
}
