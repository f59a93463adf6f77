package assistant

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/voxcart/voxcart/pkg/core/types"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiEngine is the Gemini-backed assistant engine.
type GeminiEngine struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini-backed engine.
func NewGemini(ctx context.Context, apiKey, model string) (*GeminiEngine, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiEngine{client: client, model: model}, nil
}

// Name returns the engine identifier.
func (e *GeminiEngine) Name() string {
	return "gemini"
}

// Generate calls the model for the reply text. Intent classification stays
// deterministic (ClassifyIntent) so behavior is reproducible without
// network calls; the model only writes the reply.
func (e *GeminiEngine) Generate(ctx context.Context, history []types.Turn, snapshot types.ContextSnapshot, utterance string) (*Result, error) {
	intent := ClassifyIntent(utterance)
	contents := historyContents(history, utterance)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt(snapshot, intent), genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.6),
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, fmt.Errorf("gemini generate: empty completion")
	}

	var usage types.Usage
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return &Result{
		Text:    text,
		Intent:  intent,
		Actions: DeriveActions(intent, utterance, text, snapshot),
		Usage:   usage,
	}, nil
}

// historyContents maps the stored transcript onto the genai wire shape,
// appending the current utterance when the store has not seen it yet.
func historyContents(history []types.Turn, utterance string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		var role genai.Role = genai.RoleUser
		if turn.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	if len(history) == 0 || history[len(history)-1].Content != utterance {
		contents = append(contents, genai.NewContentFromText(utterance, genai.RoleUser))
	}
	return contents
}

func systemPrompt(snapshot types.ContextSnapshot, intent string) string {
	var b strings.Builder
	b.WriteString("You are a voice shopping assistant for an online store. ")
	b.WriteString("Reply in one or two short spoken-style sentences. ")
	b.WriteString("If you mention a product search phrase, put it in double quotes.\n")
	fmt.Fprintf(&b, "User intent: %s.\n", intent)
	if snapshot.FunnelStage != "" {
		fmt.Fprintf(&b, "Shopper is on the %s page.\n", snapshot.FunnelStage)
	}
	if len(snapshot.CurrentProducts) > 0 {
		b.WriteString("Products in view:")
		for _, p := range snapshot.CurrentProducts {
			fmt.Fprintf(&b, " %s;", p.Name)
		}
		b.WriteString("\n")
	}
	if snapshot.CartItemCount > 0 {
		fmt.Fprintf(&b, "Cart has %d items.\n", snapshot.CartItemCount)
	}
	return b.String()
}
