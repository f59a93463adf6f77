// Package live implements the bidirectional WebSocket surface for voice
// shopping sessions: the client streams audio frames, commits a turn, and
// receives the assistant reply as JSON plus a synthesized audio frame.
package live

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voxcart/voxcart/pkg/core/types"
)

const (
	// Client -> server message types.
	TypeHello  = "hello"
	TypeCommit = "commit"
	TypeEnd    = "end"

	// Server -> client message types.
	TypeReady   = "ready"
	TypeTurn    = "turn"
	TypeEnded   = "ended"
	TypeWarning = "warning"
	TypeError   = "error"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

// ClientHello opens a live session. An empty SessionID creates a new
// session; a non-empty one attaches to an existing active session.
type ClientHello struct {
	Type      string            `json:"type"`
	SessionID string            `json:"session_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Language  string            `json:"language,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ClientCommit closes the buffered audio into one turn. Language, when set,
// overrides the session language for this turn only.
type ClientCommit struct {
	Type     string `json:"type"`
	Language string `json:"language,omitempty"`
}

type ClientEnd struct {
	Type              string `json:"type"`
	SatisfactionScore *int   `json:"satisfaction_score,omitempty"`
}

// ClientMessage is the decoded union of the client text frames.
type ClientMessage struct {
	Type   string
	Hello  *ClientHello
	Commit *ClientCommit
	End    *ClientEnd
}

func DecodeClientMessage(data []byte) (*ClientMessage, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, badRequest("malformed json frame", "")
	}
	switch head.Type {
	case TypeHello:
		var m ClientHello
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, badRequest("malformed hello frame", "")
		}
		return &ClientMessage{Type: TypeHello, Hello: &m}, nil
	case TypeCommit:
		var m ClientCommit
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, badRequest("malformed commit frame", "")
		}
		return &ClientMessage{Type: TypeCommit, Commit: &m}, nil
	case TypeEnd:
		var m ClientEnd
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, badRequest("malformed end frame", "")
		}
		return &ClientMessage{Type: TypeEnd, End: &m}, nil
	case "":
		return nil, badRequest("missing message type", "type")
	default:
		return nil, badRequest(fmt.Sprintf("unknown message type %q", head.Type), "type")
	}
}

type ServerReady struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type ServerTurn struct {
	Type       string                  `json:"type"`
	SessionID  string                  `json:"session_id"`
	Transcript string                  `json:"transcript"`
	Confidence float64                 `json:"confidence"`
	Reply      string                  `json:"reply"`
	Intent     string                  `json:"intent"`
	Actions    []types.SuggestedAction `json:"actions,omitempty"`
	Dispatched []types.SuggestedAction `json:"dispatched,omitempty"`
	Usage      types.Usage             `json:"usage"`
	// AudioFollows tells the client the next binary frame carries the
	// synthesized reply.
	AudioFollows bool   `json:"audio_follows"`
	AudioFormat  string `json:"audio_format,omitempty"`
}

type ServerEnded struct {
	Type    string         `json:"type"`
	Summary *types.Summary `json:"summary,omitempty"`
}

type ServerWarning struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}
