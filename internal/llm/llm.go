// Package llm turns a cleaned transcript into a structured analysis by
// driving OpenAI-compatible chat-completion providers. A Router tries
// the configured providers in order and fails over on any error; a
// single provider is never retried.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"scriptparser-go/internal/config"
	"scriptparser-go/internal/errs"
	"scriptparser-go/internal/logger"
	"scriptparser-go/internal/types"
)

// Both providers get the same prompt. json_object response format
// requires the word JSON to appear in the conversation.
const systemPrompt = `You are an expert short-video transcript analyst.
Break the transcript down into its script structure:
- "hook": how the opening seconds grab the viewer
- "core": the main content or argument of the video
- "cta": the call to action or closing appeal
- "key_quotes": up to five verbatim lines worth reusing

Respond ONLY with a JSON object of the form
{"hook": "...", "core": "...", "cta": "...", "key_quotes": ["..."]}
and nothing else. Respond in the same language as the transcript.`

// Provider analyzes one transcript against one upstream service.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, transcript string) (types.AnalysisResult, error)
}

// Router fails over across providers: each gets one attempt under its
// own timeout, in configuration order.
type Router struct {
	providers []Provider
	perTry    time.Duration
	log       *logrus.Entry
}

// New wires the primary/backup chat providers from config.
func New(cfg *config.Config) *Router {
	return NewRouter(cfg.LLMTimeout, NewChatProvider(cfg.Primary), NewChatProvider(cfg.Backup))
}

// NewRouter builds a router over explicit providers; tests inject fakes.
func NewRouter(perTry time.Duration, providers ...Provider) *Router {
	return &Router{
		providers: providers,
		perTry:    perTry,
		log:       logger.New().WithField("component", "llm"),
	}
}

// Analyze returns the first provider's valid result, falling through to
// the next on any failure. The error reports every provider's failure
// when all of them are exhausted.
func (r *Router) Analyze(ctx context.Context, transcript string) (types.AnalysisResult, error) {
	if len(r.providers) == 0 {
		return types.AnalysisResult{}, errs.New(errs.KindAnalysisFailure, "No analysis providers configured")
	}

	var failures []string
	for _, p := range r.providers {
		attemptCtx, cancel := context.WithTimeout(ctx, r.perTry)
		start := time.Now()
		result, err := p.Analyze(attemptCtx, transcript)
		cancel()
		if err == nil {
			r.log.WithField("provider", p.Name()).
				WithField("duration_ms", time.Since(start).Milliseconds()).
				Info("analysis complete")
			return result, nil
		}
		r.log.WithField("provider", p.Name()).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			WithError(err).Warn("analysis provider failed")
		failures = append(failures, fmt.Sprintf("%s: %s", p.Name(), errs.AsError(err).Message))
	}

	return types.AnalysisResult{}, errs.Newf(errs.KindAnalysisFailure,
		"All analysis providers failed; %s", strings.Join(failures, "; "))
}
