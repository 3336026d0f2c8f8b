// Package transcription adapts the speech-to-text HTTP service: one
// request, one transcript. Retry policy belongs to the caller, and
// there is no fallback transcription provider.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"scriptparser-go/internal/config"
	"scriptparser-go/internal/errs"
	"scriptparser-go/internal/logger"
	"scriptparser-go/internal/types"
)

// Stage deadlines arrive on the request context, so the shared client
// carries no timeout of its own.
var httpClient = &http.Client{}

type Client struct {
	endpoint string
	apiKey   string
	language string
	log      *logrus.Entry
}

func New(cfg config.ASRConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		log:      logger.New().WithField("component", "transcription"),
	}
}

type transcribeRequest struct {
	AudioURL string `json:"audio_url"`
	Language string `json:"language,omitempty"`
}

type transcribeResponse struct {
	Transcript string `json:"transcript"`
	Reason     string `json:"reason,omitempty"`
}

// Transcribe sends the media URL to the ASR service and returns the
// raw transcript together with its cleaned form.
func (c *Client) Transcribe(ctx context.Context, mediaURL string) (types.TranscriptionResult, error) {
	start := time.Now()

	payload, _ := json.Marshal(transcribeRequest{AudioURL: mediaURL, Language: c.language})
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return types.TranscriptionResult{}, errs.Wrap(errs.KindTranscriptionFailure, "ASR endpoint is invalid", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return types.TranscriptionResult{}, classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.TranscriptionResult{}, classify(err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.WithField("status", resp.StatusCode).
			WithField("body", truncate(string(body), 512)).Error("asr request failed")
		return types.TranscriptionResult{}, errs.Newf(errs.KindTranscriptionFailure, "ASR service returned status %d", resp.StatusCode)
	}

	var parsed transcribeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return types.TranscriptionResult{}, errs.Wrap(errs.KindTranscriptionFailure, "ASR returned an unreadable response", err)
	}
	raw := strings.TrimSpace(parsed.Transcript)
	if raw == "" {
		return types.TranscriptionResult{}, errs.New(errs.KindTranscriptionFailure, "ASR returned an empty transcript")
	}

	c.log.WithField("duration_ms", time.Since(start).Milliseconds()).
		WithField("transcript_chars", len(raw)).Info("transcription complete")

	return types.TranscriptionResult{
		RawTranscript:     raw,
		CleanedTranscript: Clean(raw),
	}, nil
}

// classify keeps budget exhaustion distinct from other upstream
// failures.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.KindTranscriptionTimeout, "ASR processing timed out", err)
	}
	return errs.Wrap(errs.KindTranscriptionFailure, "ASR service is temporarily unavailable", err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
