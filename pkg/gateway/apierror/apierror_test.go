package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxcart/voxcart/pkg/core"
)

func TestFromError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantType   core.ErrorType
		wantStatus int
	}{
		{"invalid request", core.NewInvalidRequestError("bad field"), core.ErrInvalidRequest, http.StatusBadRequest},
		{"authentication", core.NewAuthenticationError("no key"), core.ErrAuthentication, http.StatusUnauthorized},
		{"not found", core.NewNotFoundError("session not found"), core.ErrNotFound, http.StatusNotFound},
		{"session terminal", core.NewSessionTerminalError("completed"), core.ErrSessionTerminal, http.StatusConflict},
		{"empty transcript", core.NewEmptyTranscriptError(), core.ErrEmptyTranscript, http.StatusUnprocessableEntity},
		{"transcription", core.NewTranscriptionError(errors.New("stt down")), core.ErrTranscription, http.StatusBadGateway},
		{"generation", core.NewGenerationError(errors.New("model down")), core.ErrGeneration, http.StatusBadGateway},
		{"synthesis", core.NewSynthesisError(errors.New("tts down")), core.ErrSynthesis, http.StatusBadGateway},
		{"timeout", core.NewTimeoutError("turn timed out"), core.ErrTimeout, http.StatusGatewayTimeout},
		{"storage", core.NewStorageError(errors.New("redis down")), core.ErrStorage, http.StatusServiceUnavailable},
		{"rate limit", core.NewRateLimitError("slow down"), core.ErrRateLimit, http.StatusTooManyRequests},
		{"api", core.NewAPIError("boom"), core.ErrAPI, http.StatusInternalServerError},
		{"deadline exceeded", context.DeadlineExceeded, core.ErrTimeout, http.StatusGatewayTimeout},
		{"canceled", context.Canceled, core.ErrAPI, http.StatusRequestTimeout},
		{"plain error", errors.New("oops"), core.ErrAPI, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr, status := FromError(tt.err, "req_test")
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", status, tt.wantStatus)
			}
			if apiErr.Type != tt.wantType {
				t.Fatalf("type = %q, want %q", apiErr.Type, tt.wantType)
			}
			if apiErr.RequestID != "req_test" {
				t.Fatalf("request id = %q, want req_test", apiErr.RequestID)
			}
		})
	}
}

func TestFromError_Nil(t *testing.T) {
	apiErr, status := FromError(nil, "req_test")
	if apiErr != nil || status != http.StatusOK {
		t.Fatalf("FromError(nil) = %+v, %d", apiErr, status)
	}
}

func TestFromError_WrappedCanonicalError(t *testing.T) {
	inner := core.NewNotFoundError("session not found")
	wrapped := fmt.Errorf("loading session: %w", inner)

	apiErr, status := FromError(wrapped, "req_test")
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
	if apiErr.Message != "session not found" {
		t.Fatalf("message = %q", apiErr.Message)
	}
	// The canonical error must not be mutated when the request id is stamped.
	if inner.RequestID != "" {
		t.Fatalf("inner request id mutated: %q", inner.RequestID)
	}
}

func TestFromError_UnknownErrorsDoNotLeakDetails(t *testing.T) {
	apiErr, _ := FromError(errors.New("pgx: password authentication failed"), "req_test")
	if apiErr.Message != "internal error" {
		t.Fatalf("message = %q, want internal error", apiErr.Message)
	}
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, core.NewRateLimitError("slow down"), "req_abc")

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("content type = %q", ct)
	}
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if env.Error == nil || env.Error.Type != core.ErrRateLimit {
		t.Fatalf("envelope = %+v", env.Error)
	}
	if env.Error.RequestID != "req_abc" {
		t.Fatalf("request id = %q", env.Error.RequestID)
	}
}
