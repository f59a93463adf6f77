package live

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxcart/voxcart/pkg/core"
	"github.com/voxcart/voxcart/pkg/core/types"
	"github.com/voxcart/voxcart/pkg/core/voice/tts"
	"github.com/voxcart/voxcart/pkg/gateway/auth"
	"github.com/voxcart/voxcart/pkg/gateway/metrics"
	"github.com/voxcart/voxcart/pkg/gateway/ratelimit"
	"github.com/voxcart/voxcart/pkg/pipeline"
)

// TurnProcessor is the slice of the orchestrator the live handler needs.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, sessionID string, audio []byte, languageHint string) (*types.TurnOutcome, error)
}

// SessionManager is the slice of the lifecycle manager the live handler needs.
type SessionManager interface {
	Create(ctx context.Context, params pipeline.CreateParams) (*types.Session, error)
	Get(ctx context.Context, id string) (*types.Session, error)
	End(ctx context.Context, id string, satisfactionScore *int) (*types.Summary, error)
}

type Options struct {
	Turns   TurnProcessor
	Manager SessionManager
	TTS     tts.Provider // nil disables reply audio
	Limiter *ratelimit.Limiter
	Metrics *metrics.Metrics
	Tracker *Tracker
	Logger  *slog.Logger

	AllowedOrigins map[string]struct{} // empty allows all

	MaxAudioBufferBytes int64
	MaxSessionDuration  time.Duration
	PingInterval        time.Duration
	WriteTimeout        time.Duration

	VoiceID     string
	AudioFormat string
	// DefaultLanguage applies to new sessions whose hello omits a language.
	DefaultLanguage string
}

type Handler struct {
	opts     Options
	upgrader websocket.Upgrader
}

func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxAudioBufferBytes <= 0 {
		opts.MaxAudioBufferBytes = 4 << 20
	}
	if opts.MaxSessionDuration <= 0 {
		opts.MaxSessionDuration = 2 * time.Hour
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 20 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	h := &Handler{opts: opts}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  32 << 10,
		WriteBufferSize: 32 << 10,
		CheckOrigin: func(r *http.Request) bool {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" || len(opts.AllowedOrigins) == 0 {
				return true
			}
			_, ok := opts.AllowedOrigins[origin]
			return ok
		},
	}
	return h
}

// conn wraps the websocket with a write lock. gorilla allows one concurrent
// writer only; the ping loop, the read loop, and shutdown warnings all write.
type conn struct {
	ws           *websocket.Conn
	mu           sync.Mutex
	writeTimeout time.Duration
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteJSON(v)
}

func (c *conn) writeBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.BinaryMessage, data)
}

func (c *conn) writePing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

func (c *conn) writeClose(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal := "anonymous"
	if p, ok := auth.PrincipalFrom(r.Context()); ok {
		principal = ratelimit.PrincipalKeyFromAPIKey(p.APIKey)
	}
	if h.opts.Limiter != nil {
		dec := h.opts.Limiter.AcquireLive(principal, time.Now())
		if !dec.Allowed {
			http.Error(w, "too many live sessions", http.StatusTooManyRequests)
			return
		}
		if dec.Permit != nil {
			defer dec.Permit.Release()
		}
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.opts.Logger.Warn("live upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	c := &conn{ws: ws, writeTimeout: h.opts.WriteTimeout}
	if h.opts.Metrics != nil {
		h.opts.Metrics.LiveSessions.Inc()
		defer h.opts.Metrics.LiveSessions.Dec()
	}

	h.serve(r.Context(), c)
}

func (h *Handler) serve(parent context.Context, c *conn) {
	ctx, cancel := context.WithTimeout(parent, h.opts.MaxSessionDuration)
	defer cancel()

	sessionID, err := h.handshake(ctx, c)
	if err != nil {
		h.sendError(c, err)
		c.writeClose(websocket.ClosePolicyViolation, "handshake failed")
		return
	}

	logger := h.opts.Logger.With("session_id", sessionID)
	logger.Info("live session opened")

	if h.opts.Tracker != nil {
		unregister := h.opts.Tracker.Register(sessionID, Handle{
			Cancel: cancel,
			Warn: func(code, message string) error {
				return c.writeJSON(ServerWarning{Type: TypeWarning, Code: code, Message: message})
			},
		})
		defer unregister()
	}

	// Keepalive pings. Pongs extend the read deadline in the read loop.
	go func() {
		ticker := time.NewTicker(h.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.writePing(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	readDeadline := 3 * h.opts.PingInterval
	_ = c.ws.SetReadDeadline(time.Now().Add(readDeadline))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(readDeadline))
	})
	c.ws.SetReadLimit(h.opts.MaxAudioBufferBytes)

	var buf []byte
	for {
		if ctx.Err() != nil {
			c.writeClose(websocket.CloseGoingAway, "session expired")
			logger.Info("live session closed", "reason", "expired")
			return
		}

		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Info("live session closed", "reason", "client")
			} else {
				logger.Warn("live read failed", "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(readDeadline))

		switch msgType {
		case websocket.BinaryMessage:
			if int64(len(buf)+len(data)) > h.opts.MaxAudioBufferBytes {
				h.sendError(c, badRequest("audio buffer limit exceeded", ""))
				c.writeClose(websocket.CloseMessageTooBig, "audio buffer limit exceeded")
				return
			}
			buf = append(buf, data...)

		case websocket.TextMessage:
			msg, err := DecodeClientMessage(data)
			if err != nil {
				h.sendError(c, err)
				continue
			}
			switch msg.Type {
			case TypeHello:
				h.sendError(c, badRequest("session already established", ""))
			case TypeCommit:
				audio := buf
				buf = nil
				h.processTurn(ctx, c, logger, sessionID, audio, msg.Commit.Language)
			case TypeEnd:
				summary, err := h.opts.Manager.End(ctx, sessionID, msg.End.SatisfactionScore)
				if err != nil {
					h.sendError(c, err)
					continue
				}
				_ = c.writeJSON(ServerEnded{Type: TypeEnded, Summary: summary})
				c.writeClose(websocket.CloseNormalClosure, "session ended")
				logger.Info("live session closed", "reason", "ended")
				return
			}
		}
	}
}

// handshake reads the hello frame and resolves the session, creating one
// when the client did not name an existing session.
func (h *Handler) handshake(ctx context.Context, c *conn) (string, error) {
	_ = c.ws.SetReadDeadline(time.Now().Add(30 * time.Second))
	msgType, data, err := c.ws.ReadMessage()
	if err != nil {
		return "", badRequest("expected hello frame", "")
	}
	if msgType != websocket.TextMessage {
		return "", badRequest("expected text hello frame before audio", "")
	}
	msg, err := DecodeClientMessage(data)
	if err != nil {
		return "", err
	}
	if msg.Type != TypeHello {
		return "", badRequest("first frame must be hello", "type")
	}
	hello := msg.Hello

	var sess *types.Session
	if hello.SessionID != "" {
		sess, err = h.opts.Manager.Get(ctx, hello.SessionID)
		if err != nil {
			return "", err
		}
		if sess.State.Terminal() {
			return "", core.NewSessionTerminalError(string(sess.State))
		}
	} else {
		language := hello.Language
		if language == "" {
			language = h.opts.DefaultLanguage
		}
		sess, err = h.opts.Manager.Create(ctx, pipeline.CreateParams{
			UserID:     hello.UserID,
			Language:   language,
			ClientMeta: hello.Metadata,
		})
		if err != nil {
			return "", err
		}
	}

	if err := c.writeJSON(ServerReady{Type: TypeReady, SessionID: sess.ID}); err != nil {
		return "", err
	}
	return sess.ID, nil
}

// processTurn runs one committed turn. An empty languageHint transcribes in
// the session's own language.
func (h *Handler) processTurn(ctx context.Context, c *conn, logger *slog.Logger, sessionID string, audio []byte, languageHint string) {
	outcome, err := h.opts.Turns.ProcessTurn(ctx, sessionID, audio, languageHint)
	if err != nil {
		logger.Warn("live turn failed", "error", err)
		h.sendError(c, err)
		return
	}

	var replyAudio []byte
	audioFormat := ""
	if h.opts.TTS != nil && outcome.Reply != "" {
		syn, err := h.opts.TTS.Synthesize(ctx, outcome.Reply, tts.SynthesizeOptions{
			Voice:  h.opts.VoiceID,
			Format: h.opts.AudioFormat,
		})
		if err != nil {
			// The text reply still reaches the client; skip audio.
			logger.Warn("live synthesis failed", "error", err)
		} else {
			replyAudio = syn.Audio
			audioFormat = syn.Format
		}
	}

	turn := ServerTurn{
		Type:         TypeTurn,
		SessionID:    outcome.SessionID,
		Transcript:   outcome.Transcript,
		Confidence:   outcome.Confidence,
		Reply:        outcome.Reply,
		Intent:       outcome.Intent,
		Actions:      outcome.Actions,
		Dispatched:   outcome.Dispatched,
		Usage:        outcome.Usage,
		AudioFollows: len(replyAudio) > 0,
		AudioFormat:  audioFormat,
	}
	if err := c.writeJSON(turn); err != nil {
		logger.Warn("live write failed", "error", err)
		return
	}
	if len(replyAudio) > 0 {
		if err := c.writeBinary(replyAudio); err != nil {
			logger.Warn("live audio write failed", "error", err)
		}
	}
}

func (h *Handler) sendError(c *conn, err error) {
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) && decodeErr != nil {
		_ = c.writeJSON(ServerError{
			Type:    TypeError,
			Code:    decodeErr.Code,
			Message: decodeErr.Message,
			Param:   decodeErr.Param,
		})
		return
	}
	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		_ = c.writeJSON(ServerError{
			Type:    TypeError,
			Code:    string(coreErr.Type),
			Message: coreErr.Message,
			Param:   coreErr.Param,
		})
		return
	}
	_ = c.writeJSON(ServerError{Type: TypeError, Code: "internal", Message: "internal error"})
}
