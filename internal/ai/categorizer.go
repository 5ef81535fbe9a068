package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Categorizer suggests a canonical category key for a supplier category
// name that has no exact-match alias. Entirely optional: the pipeline
// falls back to the uncategorized bucket when it is absent or fails.
type Categorizer struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewCategorizer creates a Gemini-backed category suggester
func NewCategorizer(ctx context.Context, apiKey, modelName string) (*Categorizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is empty")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	model := client.GenerativeModel(modelName)

	return &Categorizer{
		client: client,
		model:  model,
	}, nil
}

// Close closes the client connection
func (c *Categorizer) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// SuggestCategory asks the model to pick one key from the canonical set.
// Returns an empty string when the model declines or answers outside the
// candidate set.
func (c *Categorizer) SuggestCategory(ctx context.Context, supplierName string, candidates []string) (string, error) {
	prompt := fmt.Sprintf(
		"You map e-commerce supplier category names onto a fixed set of canonical category keys.\n"+
			"Supplier category name: %q\n"+
			"Canonical keys: %s\n"+
			"Answer with exactly one key from the list, or NONE if nothing fits.",
		supplierName, strings.Join(candidates, ", "))

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation error: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}

	var answer string
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			answer += string(txt)
		}
	}
	answer = strings.TrimSpace(answer)

	for _, key := range candidates {
		if strings.EqualFold(answer, key) {
			return key, nil
		}
	}
	return "", nil
}
