package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/voxcart/voxcart/pkg/core"
	"github.com/voxcart/voxcart/pkg/core/voice/tts"
	"github.com/voxcart/voxcart/pkg/gateway/config"
	"github.com/voxcart/voxcart/pkg/gateway/mw"
)

type speakRequest struct {
	Text     string  `json:"text"`
	Voice    string  `json:"voice,omitempty"`
	Language string  `json:"language,omitempty"`
	Format   string  `json:"format,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
}

// SpeakHandler synthesizes arbitrary text. Clients use it to replay an
// earlier reply or voice UI chrome without burning an assistant turn.
type SpeakHandler struct {
	Config config.Config
	TTS    tts.Provider
	Logger *slog.Logger
}

func (h SpeakHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	if h.TTS == nil {
		writeError(w, reqID, core.NewAPIError("speech synthesis is not configured"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeInvalidRequest(w, reqID, "failed to read request body", "")
		return
	}

	var req speakRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeInvalidRequest(w, reqID, "malformed json body", "")
		return
	}
	if req.Text == "" {
		writeInvalidRequest(w, reqID, "text is required", "text")
		return
	}
	if len(req.Text) > 4096 {
		writeInvalidRequest(w, reqID, "text exceeds 4096 characters", "text")
		return
	}

	voice := req.Voice
	if voice == "" {
		voice = h.Config.VoiceID
	}
	format := req.Format
	if format == "" {
		format = h.Config.AudioFormat
	}

	ctx := r.Context()
	if h.Config.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Config.HandlerTimeout)
		defer cancel()
	}

	syn, err := h.TTS.Synthesize(ctx, req.Text, tts.SynthesizeOptions{
		Voice:    voice,
		Language: req.Language,
		Format:   format,
		Speed:    req.Speed,
	})
	if err != nil {
		writeError(w, reqID, core.NewSynthesisError(err))
		return
	}

	w.Header().Set("Content-Type", audioContentType(syn.Format))
	w.Header().Set("Content-Length", strconv.Itoa(len(syn.Audio)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(syn.Audio)
}

func audioContentType(format string) string {
	switch format {
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "pcm":
		return "audio/pcm"
	default:
		return "application/octet-stream"
	}
}
