// Package pipeline is the turn-processing core: the orchestrator that runs
// one spoken turn end to end, the session lifecycle manager, and the action
// dispatcher. All session mutations go through a per-session lock so history
// appends and analytics increments never interleave.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/voxcart/voxcart/pkg/core"
	"github.com/voxcart/voxcart/pkg/core/assistant"
	"github.com/voxcart/voxcart/pkg/core/commerce"
	"github.com/voxcart/voxcart/pkg/core/notify"
	"github.com/voxcart/voxcart/pkg/core/session"
	"github.com/voxcart/voxcart/pkg/core/types"
	"github.com/voxcart/voxcart/pkg/core/voice/stt"
)

const (
	defaultTurnTimeout = 30 * time.Second
	notifyTimeout      = 5 * time.Second
)

// Deps are the orchestrator's collaborators. Store, Transcriber, and Engine
// are required; Commerce and Notifier are optional and degrade to no-ops.
type Deps struct {
	Store       session.Store
	Transcriber stt.Provider
	Engine      assistant.Engine
	Commerce    commerce.Client
	Notifier    notify.Notifier
	Logger      *slog.Logger

	// TurnTimeout bounds one ProcessTurn call end to end.
	TurnTimeout time.Duration

	// Now is overridable for tests.
	Now func() time.Time
}

// Orchestrator coordinates transcription, context assembly, generation,
// persistence, and action dispatch for one turn at a time per session.
type Orchestrator struct {
	store       session.Store
	transcriber stt.Provider
	engine      assistant.Engine
	commerce    commerce.Client
	notifier    notify.Notifier
	dispatcher  *Dispatcher
	locks       *sessionLocks
	logger      *slog.Logger
	turnTimeout time.Duration
	now         func() time.Time
}

// NewOrchestrator validates deps and builds the orchestrator.
func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, errors.New("pipeline: missing session store")
	}
	if deps.Transcriber == nil {
		return nil, errors.New("pipeline: missing transcriber")
	}
	if deps.Engine == nil {
		return nil, errors.New("pipeline: missing assistant engine")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Noop{}
	}
	if deps.TurnTimeout <= 0 {
		deps.TurnTimeout = defaultTurnTimeout
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Orchestrator{
		store:       deps.Store,
		transcriber: deps.Transcriber,
		engine:      deps.Engine,
		commerce:    deps.Commerce,
		notifier:    deps.Notifier,
		dispatcher:  NewDispatcher(deps.Commerce, deps.Logger),
		locks:       newSessionLocks(),
		logger:      deps.Logger,
		turnTimeout: deps.TurnTimeout,
		now:         deps.Now,
	}, nil
}

// ProcessTurn runs one spoken turn: transcribe, append the user turn,
// assemble context, generate the reply, append the assistant turn, dispatch
// suggested actions, and record analytics. Synthesis of the reply audio is
// the caller's separate call.
//
// Failure policy: everything before the user turn is durably appended aborts
// the turn cleanly; engine failures are masked by a fallback reply; optional
// enrichment and post-turn side effects are absorbed and logged; storage is
// the only class that can fail the operation after retries.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID string, audio []byte, languageHint string) (*types.TurnOutcome, error) {
	release := o.locks.acquire(sessionID)
	defer release()

	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()

	// Step 1: load session and enforce the state machine.
	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.State.Terminal() {
		return nil, core.NewSessionTerminalError(string(sess.State))
	}

	// Step 2: transcribe. Single attempt; the caller may retry the whole turn.
	language := sess.Language
	if languageHint != "" {
		language = languageHint
	}
	transcript, err := o.transcriber.Transcribe(ctx, audio, stt.TranscribeOptions{Language: language})
	if err != nil {
		if timeoutErr := asTimeout(ctx, err); timeoutErr != nil {
			return nil, timeoutErr
		}
		return nil, core.NewTranscriptionError(err)
	}
	text := strings.TrimSpace(transcript.Text)
	if text == "" {
		return nil, core.NewEmptyTranscriptError()
	}

	// Step 3: append the user turn. From here on the utterance must not be
	// silently dropped; the store retries writes with bounded backoff.
	userTurn := types.Turn{Role: types.RoleUser, Content: text, Timestamp: o.now().UTC()}
	if err := o.store.AppendTurn(ctx, sessionID, userTurn, types.AnalyticsDelta{}); err != nil {
		if timeoutErr := asTimeout(ctx, err); timeoutErr != nil {
			return nil, timeoutErr
		}
		return nil, err
	}
	sess.AppendTurn(userTurn)

	// Step 4: assemble context. Cart lookup is optional enrichment; a miss
	// degrades the turn, never aborts it.
	o.enrichContext(ctx, sess)

	// Step 5: generate. The user always receives a response: failures and
	// unparseable output fall back to a fixed apology with intent unknown.
	result, err := o.engine.Generate(ctx, sess.History, sess.Context, text)
	if err != nil {
		if timeoutErr := asTimeout(ctx, err); timeoutErr != nil {
			return nil, timeoutErr
		}
		o.logger.Warn("generation failed, substituting fallback reply",
			"session_id", sessionID, "engine", o.engine.Name(), "error", err)
		result = assistant.Fallback()
	}

	// Step 6: append the assistant turn. The intent count and the conversion
	// attempt land in the same store write as the turn, so a later Put
	// failure cannot strand a persisted turn without its counters.
	assistantTurn := types.Turn{
		Role:      types.RoleAssistant,
		Content:   result.Text,
		Timestamp: o.now().UTC(),
		Intent:    result.Intent,
	}
	delta := types.AnalyticsDelta{
		Intent:            result.Intent,
		ConversionAttempt: result.Intent == assistant.IntentAddToCart || result.Intent == assistant.IntentCheckout,
	}
	if err := o.store.AppendTurn(ctx, sessionID, assistantTurn, delta); err != nil {
		if timeoutErr := asTimeout(ctx, err); timeoutErr != nil {
			return nil, timeoutErr
		}
		return nil, err
	}
	sess.AppendTurn(assistantTurn)
	sess.Analytics.Apply(delta)

	// Step 7: dispatch suggested actions, best effort.
	dispatched := o.dispatcher.Dispatch(ctx, sess, result.Actions)

	// Step 8: persist the dispatcher's context and discussed-products
	// updates. The turn itself is already durable.
	if err := o.store.Put(ctx, sess); err != nil {
		if timeoutErr := asTimeout(ctx, err); timeoutErr != nil {
			return nil, timeoutErr
		}
		return nil, err
	}

	o.notifyAsync("turn.completed", map[string]any{
		"session_id": sessionID,
		"intent":     result.Intent,
		"actions":    len(dispatched),
	})

	// Step 9: return. Speech synthesis is deliberately not bundled here.
	return &types.TurnOutcome{
		SessionID:  sessionID,
		Transcript: text,
		Confidence: transcript.Confidence,
		Reply:      result.Text,
		Intent:     result.Intent,
		Actions:    result.Actions,
		Dispatched: dispatched,
		Usage:      result.Usage,
	}, nil
}

// enrichContext merges fresh cart data into the session's context snapshot.
func (o *Orchestrator) enrichContext(ctx context.Context, sess *types.Session) {
	if o.commerce == nil || sess.Context.CartID == "" {
		return
	}
	cart, err := o.commerce.Cart(ctx, sess.Context.CartID)
	if err != nil {
		o.logger.Warn("cart enrichment failed, proceeding with stale context",
			"session_id", sess.ID, "cart_id", sess.Context.CartID, "error", err)
		return
	}
	sess.Context.CartItemCount = len(cart.Items)
	sess.Context.CartTotalCents = cart.TotalCents
}

func (o *Orchestrator) notifyAsync(event string, payload map[string]any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := o.notifier.Notify(ctx, event, payload); err != nil {
			o.logger.Warn("notification failed", "event", event, "error", err)
		}
	}()
}

// asTimeout converts a deadline-driven failure into the canonical timeout
// error. Caller-initiated cancellation keeps the context error so the
// gateway can distinguish the two.
func asTimeout(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.NewTimeoutError("turn processing timed out")
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("turn canceled: %w", err)
	}
	return nil
}
