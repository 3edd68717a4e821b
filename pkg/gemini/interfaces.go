package gemini

import (
	"context"
	"iter"

	"google.golang.org/genai"
)

// Auditor インターフェース
// Client がこれを満たすように実装します
type Auditor interface {
	ProbeConnection(ctx context.Context, model, apiKey string) ProbeResult
	Generate(ctx context.Context, p Prompt) (string, error)
	GenerateStream(ctx context.Context, p Prompt) (iter.Seq2[string, error], error)
}

// contentGenerator は SDK の送信口です。*genai.Models がこれを満たします。
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

var _ Auditor = (*Client)(nil)
