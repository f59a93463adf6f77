package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/voxcart/voxcart/pkg/core"
	"github.com/voxcart/voxcart/pkg/core/types"
	"github.com/voxcart/voxcart/pkg/gateway/config"
	"github.com/voxcart/voxcart/pkg/gateway/metrics"
	"github.com/voxcart/voxcart/pkg/gateway/mw"
	"github.com/voxcart/voxcart/pkg/pipeline"
)

type startSessionRequest struct {
	UserID      string            `json:"user_id,omitempty"`
	Language    string            `json:"language,omitempty"`
	DeviceClass string            `json:"device_class,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type StartSessionHandler struct {
	Config   config.Config
	Sessions SessionManager
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

func (h StartSessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	var req startSessionRequest
	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeInvalidRequest(w, reqID, "failed to read request body", "")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeInvalidRequest(w, reqID, "malformed json body", "")
			return
		}
	}

	sess, err := h.Sessions.Create(r.Context(), pipeline.CreateParams{
		UserID:      req.UserID,
		Language:    req.Language,
		DeviceClass: req.DeviceClass,
		ClientMeta:  req.Metadata,
	})
	if err != nil {
		writeError(w, reqID, err)
		return
	}

	if h.Metrics != nil {
		h.Metrics.SessionsStarted.Inc()
	}
	w.Header().Set("X-Session-ID", sess.ID)
	writeJSON(w, http.StatusCreated, sess)
}

type GetSessionHandler struct {
	Sessions SessionManager
}

func (h GetSessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	id := r.PathValue("id")
	if id == "" {
		writeInvalidRequest(w, reqID, "missing session id", "id")
		return
	}

	sess, err := h.Sessions.Get(r.Context(), id)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type endSessionRequest struct {
	SatisfactionScore *int `json:"satisfaction_score,omitempty"`
}

type EndSessionHandler struct {
	Sessions SessionManager
	Metrics  *metrics.Metrics
}

func (h EndSessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	id := r.PathValue("id")
	if id == "" {
		writeInvalidRequest(w, reqID, "missing session id", "id")
		return
	}

	var req endSessionRequest
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeInvalidRequest(w, reqID, "failed to read request body", "")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeInvalidRequest(w, reqID, "malformed json body", "")
			return
		}
	}
	if req.SatisfactionScore != nil && (*req.SatisfactionScore < 1 || *req.SatisfactionScore > 5) {
		writeInvalidRequest(w, reqID, "satisfaction_score must be between 1 and 5", "satisfaction_score")
		return
	}

	summary, err := h.Sessions.End(r.Context(), id, req.SatisfactionScore)
	if err != nil {
		writeError(w, reqID, err)
		return
	}

	if h.Metrics != nil {
		h.Metrics.SessionsEnded.WithLabelValues(string(types.StateCompleted)).Inc()
	}
	writeJSON(w, http.StatusOK, summary)
}

// PauseSessionHandler and ResumeSessionHandler expose the hold/return flow
// used by clients that background the microphone mid-session.
type PauseSessionHandler struct {
	Sessions SessionManager
}

func (h PauseSessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	id := r.PathValue("id")
	if id == "" {
		writeInvalidRequest(w, reqID, "missing session id", "id")
		return
	}
	state, err := h.Sessions.Pause(r.Context(), id)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	if state == "" {
		writeError(w, reqID, core.NewNotFoundError("session not found"))
		return
	}
	// The echoed state is the session's actual state, so a wrong-state
	// no-op is visible to the client.
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "state": string(state)})
}

type ResumeSessionHandler struct {
	Sessions SessionManager
}

func (h ResumeSessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	id := r.PathValue("id")
	if id == "" {
		writeInvalidRequest(w, reqID, "missing session id", "id")
		return
	}
	state, err := h.Sessions.Resume(r.Context(), id)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	if state == "" {
		writeError(w, reqID, core.NewNotFoundError("session not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "state": string(state)})
}
