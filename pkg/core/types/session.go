// Package types defines the session, turn, and action types shared across
// the assistant pipeline and the gateway surface.
package types

import "time"

// SessionState is the lifecycle state of a session.
type SessionState string

const (
	StateActive    SessionState = "active"
	StatePaused    SessionState = "paused"
	StateCompleted SessionState = "completed"
	StateAbandoned SessionState = "abandoned"
)

// Terminal reports whether the state accepts no further turns or transitions.
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateAbandoned
}

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in a session's conversation history.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Intent is set on assistant turns only.
	Intent string `json:"intent,omitempty"`
}

// Product is a commerce catalog item referenced in conversation context.
type Product struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents,omitempty"`
	Currency   string `json:"currency,omitempty"`
	URL        string `json:"url,omitempty"`
}

// ContextSnapshot is the mutable commerce context used to ground assistant
// replies. It is owned by the session and mutated only under the session's
// per-id serialization.
type ContextSnapshot struct {
	FunnelStage     string    `json:"funnel_stage,omitempty"`
	CurrentProducts []Product `json:"current_products,omitempty"`
	CartID          string    `json:"cart_id,omitempty"`
	CartItemCount   int       `json:"cart_item_count,omitempty"`
	CartTotalCents  int64     `json:"cart_total_cents,omitempty"`
	LastQuery       string    `json:"last_query,omitempty"`
}

// Analytics holds per-session counters. Counters are monotonically
// non-decreasing while the session is live.
type Analytics struct {
	IntentCounts       map[string]int `json:"intent_counts"`
	ProductsDiscussed  []string       `json:"products_discussed"`
	ConversionAttempts int            `json:"conversion_attempts"`
	SatisfactionScore  *int           `json:"satisfaction_score,omitempty"`
}

// AnalyticsDelta is the per-turn analytics increment. Stores apply it in the
// same write as the turn append so a failed follow-up write cannot leave the
// counters behind the history.
type AnalyticsDelta struct {
	Intent            string
	ConversionAttempt bool
}

// Apply folds a delta into the counters.
func (a *Analytics) Apply(d AnalyticsDelta) {
	a.BumpIntent(d.Intent)
	if d.ConversionAttempt {
		a.ConversionAttempts++
	}
}

// BumpIntent increments the occurrence count for an intent.
func (a *Analytics) BumpIntent(intent string) {
	if intent == "" {
		return
	}
	if a.IntentCounts == nil {
		a.IntentCounts = make(map[string]int)
	}
	a.IntentCounts[intent]++
}

// AddProductDiscussed records a product id in the de-duplicated discussed
// set. It returns false if the id was already present.
func (a *Analytics) AddProductDiscussed(id string) bool {
	if id == "" {
		return false
	}
	for _, existing := range a.ProductsDiscussed {
		if existing == id {
			return false
		}
	}
	a.ProductsDiscussed = append(a.ProductsDiscussed, id)
	return true
}

// Session is one conversation between a user (or guest) and the assistant.
type Session struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id,omitempty"`
	Language    string            `json:"language"`
	DeviceClass string            `json:"device_class,omitempty"`
	ClientMeta  map[string]string `json:"client_meta,omitempty"`

	State     SessionState `json:"state"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`

	// TotalTurns always equals len(History).
	TotalTurns int `json:"total_turns"`

	History   []Turn          `json:"history"`
	Context   ContextSnapshot `json:"context"`
	Analytics Analytics       `json:"analytics"`
}

// AppendTurn appends a turn to the history, keeping TotalTurns in lock-step.
func (s *Session) AppendTurn(t Turn) {
	s.History = append(s.History, t)
	s.TotalTurns = len(s.History)
}

// Clone returns a deep copy of the session. Store drivers hand out clones so
// callers never alias store-owned state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.EndedAt != nil {
		ended := *s.EndedAt
		out.EndedAt = &ended
	}
	if s.ClientMeta != nil {
		out.ClientMeta = make(map[string]string, len(s.ClientMeta))
		for k, v := range s.ClientMeta {
			out.ClientMeta[k] = v
		}
	}
	out.History = make([]Turn, len(s.History))
	copy(out.History, s.History)
	out.Context.CurrentProducts = make([]Product, len(s.Context.CurrentProducts))
	copy(out.Context.CurrentProducts, s.Context.CurrentProducts)
	if s.Analytics.IntentCounts != nil {
		out.Analytics.IntentCounts = make(map[string]int, len(s.Analytics.IntentCounts))
		for k, v := range s.Analytics.IntentCounts {
			out.Analytics.IntentCounts[k] = v
		}
	}
	out.Analytics.ProductsDiscussed = make([]string, len(s.Analytics.ProductsDiscussed))
	copy(out.Analytics.ProductsDiscussed, s.Analytics.ProductsDiscussed)
	if s.Analytics.SatisfactionScore != nil {
		score := *s.Analytics.SatisfactionScore
		out.Analytics.SatisfactionScore = &score
	}
	return &out
}

// Summary is the read-only snapshot returned when a session ends.
type Summary struct {
	SessionID  string        `json:"session_id"`
	State      SessionState  `json:"state"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    time.Time     `json:"ended_at"`
	Duration   time.Duration `json:"duration_ms"`
	TotalTurns int           `json:"total_turns"`
	Analytics  Analytics     `json:"analytics"`
}
