package llm

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/sirupsen/logrus"

	"scriptparser-go/internal/config"
	"scriptparser-go/internal/errs"
	"scriptparser-go/internal/logger"
	"scriptparser-go/internal/types"
)

// ChatProvider drives one OpenAI-compatible chat-completion endpoint.
// DeepSeek and Kimi both speak this protocol, so one implementation
// covers the primary and the backup.
type ChatProvider struct {
	name   string
	model  string
	client openai.Client
	log    *logrus.Entry
}

func NewChatProvider(cfg config.ProviderConfig) *ChatProvider {
	return &ChatProvider{
		name:  cfg.Name,
		model: cfg.Model,
		// Failover is the router's job; the SDK must not stack its own
		// retries under the per-attempt deadline.
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
			option.WithMaxRetries(0),
		),
		log: logger.New().WithField("component", "llm").WithField("provider", cfg.Name),
	}
}

func (p *ChatProvider) Name() string { return p.name }

func (p *ChatProvider) Analyze(ctx context.Context, transcript string) (types.AnalysisResult, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(transcript),
		},
		Model:       p.model,
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(1000),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return types.AnalysisResult{}, errs.Wrap(errs.KindAnalysisFailure, "request timed out", err)
		}
		return types.AnalysisResult{}, errs.Wrap(errs.KindAnalysisFailure, "request failed", err)
	}
	if len(resp.Choices) == 0 {
		return types.AnalysisResult{}, errs.New(errs.KindAnalysisFailure, "response carried no choices")
	}

	content := resp.Choices[0].Message.Content
	p.log.WithField("model", p.model).
		WithField("content_chars", len(content)).
		Debug("chat completion received")
	return parseAnalysis(content)
}
