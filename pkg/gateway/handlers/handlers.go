// Package handlers implements the gateway's HTTP endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/voxcart/voxcart/pkg/core"
	"github.com/voxcart/voxcart/pkg/core/types"
	"github.com/voxcart/voxcart/pkg/gateway/apierror"
	"github.com/voxcart/voxcart/pkg/pipeline"
)

// TurnProcessor is the slice of the orchestrator the handlers need.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, sessionID string, audio []byte, languageHint string) (*types.TurnOutcome, error)
}

// SessionManager is the slice of the lifecycle manager the handlers need.
type SessionManager interface {
	Create(ctx context.Context, params pipeline.CreateParams) (*types.Session, error)
	Get(ctx context.Context, id string) (*types.Session, error)
	Pause(ctx context.Context, id string) (types.SessionState, error)
	Resume(ctx context.Context, id string) (types.SessionState, error)
	End(ctx context.Context, id string, satisfactionScore *int) (*types.Summary, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, reqID string, err error) {
	apiErr, status := apierror.FromError(err, reqID)
	writeJSON(w, status, apierror.Envelope{Error: apiErr})
}

func writeInvalidRequest(w http.ResponseWriter, reqID, message, param string) {
	writeError(w, reqID, &core.Error{
		Type:    core.ErrInvalidRequest,
		Message: message,
		Param:   param,
	})
}

func durationMillis(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
