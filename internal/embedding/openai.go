package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = string(openai.SmallEmbedding3)

// DefaultCategory is assigned when classification fails or returns an
// unknown label. Classification is best-effort; only a missing embedding
// fails the operation.
const DefaultCategory = "Other"

// Categories lists the question category labels the classifier may assign.
var Categories = []string{
	"Funding",
	"Governance",
	"Impact",
	"Operations",
	"Community",
	DefaultCategory,
}

// OpenAIProvider implements Provider using the OpenAI API: one embeddings
// call for the vector and one small chat completion for the category label.
type OpenAIProvider struct {
	client *openai.Client
	model  openai.EmbeddingModel
	logger *slog.Logger
}

// NewOpenAIProvider creates a provider with the given API key and embedding
// model name. An empty model selects DefaultModel.
func NewOpenAIProvider(apiKey, model string, logger *slog.Logger) *OpenAIProvider {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(model),
		logger: logger,
	}
}

// Embed generates the question's embedding and category. An embedding
// failure is returned to the caller; a classification failure falls back to
// DefaultCategory.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) (*Result, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrNoEmbedding
	}

	category, err := p.classify(ctx, text)
	if err != nil {
		p.logger.Warn("category classification failed, using default",
			slog.String("error", err.Error()))
		category = DefaultCategory
	}

	return &Result{
		Embedding: resp.Data[0].Embedding,
		Category:  category,
	}, nil
}

func (p *OpenAIProvider) classify(ctx context.Context, text string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT3Dot5Turbo,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: classifyPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
		MaxTokens:   4,
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("classification returned no choices")
	}
	return NormalizeCategory(resp.Choices[0].Message.Content), nil
}

func classifyPrompt() string {
	return "Classify the question into exactly one of these categories: " +
		strings.Join(Categories, ", ") + ". Respond with the category name only."
}

// NormalizeCategory maps a classifier response onto a known category label,
// falling back to DefaultCategory for anything unrecognized.
func NormalizeCategory(label string) string {
	label = strings.TrimSpace(strings.Trim(label, ".\"'"))
	for _, category := range Categories {
		if strings.EqualFold(label, category) {
			return category
		}
	}
	return DefaultCategory
}
