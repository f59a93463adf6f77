package types

// Usage is the token accounting for one assistant engine call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// TurnOutcome is the result of processing one user turn. It is ephemeral:
// created per invocation and folded into the session record.
type TurnOutcome struct {
	SessionID  string  `json:"session_id"`
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`

	Reply  string `json:"reply"`
	Intent string `json:"intent"`

	// Actions is everything the engine suggested; Dispatched is the subset
	// the dispatcher actually executed.
	Actions    []SuggestedAction `json:"actions"`
	Dispatched []SuggestedAction `json:"dispatched"`

	Usage Usage `json:"usage"`
}
