package live

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/voxcart/voxcart/pkg/core/types"
	"github.com/voxcart/voxcart/pkg/pipeline"
)

type turnCall struct {
	sessionID    string
	audio        []byte
	languageHint string
}

type fakeTurns struct {
	mu    sync.Mutex
	calls []turnCall
}

func (f *fakeTurns) ProcessTurn(ctx context.Context, sessionID string, audio []byte, languageHint string) (*types.TurnOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, turnCall{sessionID: sessionID, audio: audio, languageHint: languageHint})
	return &types.TurnOutcome{
		SessionID:  sessionID,
		Transcript: "find me a red dress",
		Confidence: 0.93,
		Reply:      "Searching for \"red dress\" now.",
		Intent:     "product_search",
	}, nil
}

func (f *fakeTurns) lastCall(t *testing.T) turnCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("no turns processed")
	}
	return f.calls[len(f.calls)-1]
}

type fakeLiveManager struct {
	mu      sync.Mutex
	created []pipeline.CreateParams
}

func (f *fakeLiveManager) Create(ctx context.Context, params pipeline.CreateParams) (*types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, params)
	return &types.Session{ID: "sess_live", State: types.StateActive, Language: params.Language}, nil
}

func (f *fakeLiveManager) Get(ctx context.Context, id string) (*types.Session, error) {
	return &types.Session{ID: id, State: types.StateActive, Language: "fr-FR"}, nil
}

func (f *fakeLiveManager) End(ctx context.Context, id string, satisfactionScore *int) (*types.Summary, error) {
	return &types.Summary{SessionID: id, State: types.StateCompleted}, nil
}

func dialLive(t *testing.T, turns *fakeTurns, manager *fakeLiveManager) *websocket.Conn {
	t.Helper()
	h := NewHandler(Options{
		Turns:           turns,
		Manager:         manager,
		Logger:          slog.New(slog.DiscardHandler),
		DefaultLanguage: "en-US",
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readServerJSON(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	if err := ws.ReadJSON(v); err != nil {
		t.Fatalf("read frame: %v", err)
	}
}

func TestLive_TurnUsesSessionLanguage(t *testing.T) {
	turns := &fakeTurns{}
	manager := &fakeLiveManager{}
	ws := dialLive(t, turns, manager)

	if err := ws.WriteJSON(ClientHello{Type: TypeHello, Language: "fr-FR"}); err != nil {
		t.Fatalf("hello: %v", err)
	}
	var ready ServerReady
	readServerJSON(t, ws, &ready)
	if ready.Type != TypeReady || ready.SessionID != "sess_live" {
		t.Fatalf("ready = %+v", ready)
	}
	manager.mu.Lock()
	if len(manager.created) != 1 || manager.created[0].Language != "fr-FR" {
		t.Fatalf("created = %+v, want fr-FR session", manager.created)
	}
	manager.mu.Unlock()

	if err := ws.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("audio: %v", err)
	}
	if err := ws.WriteJSON(ClientCommit{Type: TypeCommit}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	var turn ServerTurn
	readServerJSON(t, ws, &turn)
	if turn.Type != TypeTurn || turn.Intent != "product_search" {
		t.Fatalf("turn = %+v", turn)
	}

	call := turns.lastCall(t)
	if call.sessionID != "sess_live" {
		t.Errorf("sessionID = %q", call.sessionID)
	}
	// No hint on the commit frame: the orchestrator falls back to the
	// session's own language rather than the server default.
	if call.languageHint != "" {
		t.Errorf("languageHint = %q, want empty", call.languageHint)
	}
}

func TestLive_CommitLanguageOverridesForOneTurn(t *testing.T) {
	turns := &fakeTurns{}
	ws := dialLive(t, turns, &fakeLiveManager{})

	if err := ws.WriteJSON(ClientHello{Type: TypeHello, SessionID: "sess_existing"}); err != nil {
		t.Fatalf("hello: %v", err)
	}
	var ready ServerReady
	readServerJSON(t, ws, &ready)
	if ready.SessionID != "sess_existing" {
		t.Fatalf("ready = %+v", ready)
	}

	if err := ws.WriteMessage(websocket.BinaryMessage, []byte{0x01}); err != nil {
		t.Fatalf("audio: %v", err)
	}
	if err := ws.WriteJSON(ClientCommit{Type: TypeCommit, Language: "es-ES"}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	var turn ServerTurn
	readServerJSON(t, ws, &turn)

	if call := turns.lastCall(t); call.languageHint != "es-ES" {
		t.Errorf("languageHint = %q, want es-ES", call.languageHint)
	}
}

func TestLive_HelloWithoutLanguageUsesDefault(t *testing.T) {
	manager := &fakeLiveManager{}
	ws := dialLive(t, &fakeTurns{}, manager)

	if err := ws.WriteJSON(ClientHello{Type: TypeHello}); err != nil {
		t.Fatalf("hello: %v", err)
	}
	var ready ServerReady
	readServerJSON(t, ws, &ready)

	manager.mu.Lock()
	defer manager.mu.Unlock()
	if len(manager.created) != 1 || manager.created[0].Language != "en-US" {
		t.Fatalf("created = %+v, want en-US default", manager.created)
	}
}
