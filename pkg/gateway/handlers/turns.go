package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/voxcart/voxcart/pkg/core"
	"github.com/voxcart/voxcart/pkg/core/types"
	"github.com/voxcart/voxcart/pkg/core/voice/tts"
	"github.com/voxcart/voxcart/pkg/gateway/config"
	"github.com/voxcart/voxcart/pkg/gateway/metrics"
	"github.com/voxcart/voxcart/pkg/gateway/mw"
)

type turnRequest struct {
	// Audio carries the utterance as base64. Raw audio uploads use the
	// audio/* content types instead.
	Audio    string `json:"audio"`
	Language string `json:"language,omitempty"`
	// SkipReplyAudio suppresses synthesis for text-only clients.
	SkipReplyAudio bool `json:"skip_reply_audio,omitempty"`
}

type turnResponse struct {
	SessionID  string                  `json:"session_id"`
	Transcript string                  `json:"transcript"`
	Confidence float64                 `json:"confidence"`
	Reply      string                  `json:"reply"`
	Intent     string                  `json:"intent"`
	Actions    []types.SuggestedAction `json:"actions,omitempty"`
	Dispatched []types.SuggestedAction `json:"dispatched,omitempty"`
	Usage      types.Usage             `json:"usage"`

	ReplyAudio       string `json:"reply_audio,omitempty"`
	ReplyAudioFormat string `json:"reply_audio_format,omitempty"`
}

type TurnHandler struct {
	Config  config.Config
	Turns   TurnProcessor
	TTS     tts.Provider // nil disables reply audio
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func (h TurnHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID, _ := mw.RequestIDFrom(r.Context())

	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeInvalidRequest(w, reqID, "missing session id", "id")
		return
	}

	audio, language, skipReplyAudio, err := h.readAudio(w, r)
	if err != nil {
		h.countError(err)
		writeError(w, reqID, err)
		return
	}

	// Request-scoped timeout covering transcription, generation, and synthesis.
	ctx := r.Context()
	if h.Config.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Config.HandlerTimeout)
		defer cancel()
	}

	outcome, err := h.Turns.ProcessTurn(ctx, sessionID, audio, language)
	if err != nil {
		h.countError(err)
		writeError(w, reqID, err)
		return
	}

	resp := turnResponse{
		SessionID:  outcome.SessionID,
		Transcript: outcome.Transcript,
		Confidence: outcome.Confidence,
		Reply:      outcome.Reply,
		Intent:     outcome.Intent,
		Actions:    outcome.Actions,
		Dispatched: outcome.Dispatched,
		Usage:      outcome.Usage,
	}

	if h.TTS != nil && !skipReplyAudio && outcome.Reply != "" {
		syn, err := h.TTS.Synthesize(ctx, outcome.Reply, tts.SynthesizeOptions{
			Voice:    h.Config.VoiceID,
			Language: language,
			Format:   h.Config.AudioFormat,
		})
		if err != nil {
			// The turn itself committed; return the text reply without audio.
			if h.Logger != nil {
				h.Logger.Warn("reply synthesis failed", "request_id", reqID, "session_id", sessionID, "error", err)
			}
		} else {
			resp.ReplyAudio = base64.StdEncoding.EncodeToString(syn.Audio)
			resp.ReplyAudioFormat = syn.Format
		}
	}

	h.recordMetrics(outcome, start)

	w.Header().Set("X-Session-ID", outcome.SessionID)
	w.Header().Set("X-Intent", outcome.Intent)
	w.Header().Set("X-Input-Tokens", strconv.Itoa(outcome.Usage.InputTokens))
	w.Header().Set("X-Output-Tokens", strconv.Itoa(outcome.Usage.OutputTokens))
	w.Header().Set("X-Duration-Ms", strconv.FormatInt(durationMillis(start), 10))
	writeJSON(w, http.StatusOK, resp)
}

// readAudio accepts either a JSON body with base64 audio or a raw audio
// upload identified by an audio/* content type.
func (h TurnHandler) readAudio(w http.ResponseWriter, r *http.Request) (audio []byte, language string, skipReplyAudio bool, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", false, core.NewInvalidRequestError("request body too large")
		}
		return nil, "", false, core.NewInvalidRequestError("failed to read request body")
	}

	ct := r.Header.Get("Content-Type")
	if len(ct) >= 6 && ct[:6] == "audio/" {
		if int64(len(body)) > h.Config.MaxAudioBytes {
			return nil, "", false, core.NewInvalidRequestErrorWithParam("audio exceeds size limit", "audio")
		}
		return body, r.URL.Query().Get("language"), false, nil
	}

	var req turnRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, "", false, core.NewInvalidRequestError("malformed json body")
	}
	if req.Audio == "" {
		return nil, "", false, core.NewInvalidRequestErrorWithParam("audio is required", "audio")
	}
	decoded, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		return nil, "", false, core.NewInvalidRequestErrorWithParam("audio must be valid base64", "audio")
	}
	if int64(len(decoded)) > h.Config.MaxAudioBytes {
		return nil, "", false, core.NewInvalidRequestErrorWithParam("audio exceeds size limit", "audio")
	}
	return decoded, req.Language, req.SkipReplyAudio, nil
}

func (h TurnHandler) recordMetrics(outcome *types.TurnOutcome, start time.Time) {
	if h.Metrics == nil {
		return
	}
	h.Metrics.TurnsTotal.WithLabelValues(outcome.Intent).Inc()
	h.Metrics.TurnDuration.Observe(time.Since(start).Seconds())
	h.Metrics.TokensTotal.WithLabelValues("input").Add(float64(outcome.Usage.InputTokens))
	h.Metrics.TokensTotal.WithLabelValues("output").Add(float64(outcome.Usage.OutputTokens))
	for _, a := range outcome.Dispatched {
		h.Metrics.ActionsDispatched.WithLabelValues(string(a.Type)).Inc()
	}
}

func (h TurnHandler) countError(err error) {
	if h.Metrics == nil {
		return
	}
	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		h.Metrics.ErrorsTotal.WithLabelValues(string(coreErr.Type)).Inc()
		return
	}
	h.Metrics.ErrorsTotal.WithLabelValues("internal").Inc()
}
