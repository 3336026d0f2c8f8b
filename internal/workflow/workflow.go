// Package workflow drives one request through media acquisition,
// transcription and analysis under a total time budget. The
// orchestrator owns the staged artifact for the whole run and cleans it
// up on every exit path.
package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"scriptparser-go/internal/config"
	"scriptparser-go/internal/errs"
	"scriptparser-go/internal/logger"
	"scriptparser-go/internal/staging"
	"scriptparser-go/internal/types"
)

// Stage names used in timings, logs and error annotations.
const (
	StageResolve    = "resolve"
	StagePublish    = "publish"
	StageTranscribe = "transcribe"
	StageAnalyze    = "analyze"
)

// MediaResolver turns share text into fetchable media.
type MediaResolver interface {
	Resolve(ctx context.Context, shareText string) (types.ResolvedMedia, error)
}

// ArtifactStager owns upload staging, publishing and cleanup.
type ArtifactStager interface {
	CanPublish() bool
	Save(file *types.FileSource) (*staging.Artifact, error)
	Publish(ctx context.Context, a *staging.Artifact) (string, error)
	Cleanup(a *staging.Artifact)
}

// Transcriber produces a transcript for a fetchable media URL.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaURL string) (types.TranscriptionResult, error)
}

// Analyzer extracts the structured analysis from a cleaned transcript.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (types.AnalysisResult, error)
}

type Orchestrator struct {
	cfg         *config.Config
	resolver    MediaResolver
	stager      ArtifactStager
	transcriber Transcriber
	analyzer    Analyzer
}

func New(cfg *config.Config, resolver MediaResolver, stager ArtifactStager, transcriber Transcriber, analyzer Analyzer) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		resolver:    resolver,
		stager:      stager,
		transcriber: transcriber,
		analyzer:    analyzer,
	}
}

// Run executes the pipeline for one VideoSource. Errors keep the kind
// of the failing component and gain the stage name and elapsed time;
// the staged artifact, if any, is removed before Run returns.
func (o *Orchestrator) Run(ctx context.Context, source types.VideoSource) (types.WorkflowResult, error) {
	id := uuid.New().String()
	log := logger.New()
	rec := newRecorder(o.cfg.TotalBudget)

	var artifact *staging.Artifact
	defer func() { o.stager.Cleanup(artifact) }()

	var media types.ResolvedMedia
	switch {
	case source.URL != nil:
		stageCtx, cancel := context.WithTimeout(ctx, min(o.cfg.ResolveTimeout, rec.remaining()))
		start := time.Now()
		m, err := o.resolver.Resolve(stageCtx, source.URL.RawText)
		cancel()
		elapsed := time.Since(start)
		rec.observe(log.WithStage(id, StageResolve), StageResolve, elapsed, o.cfg.ResolveTimeout)
		if err != nil {
			return types.WorkflowResult{}, errs.AsError(err).AtStage(StageResolve, elapsed)
		}
		media = m

	case source.File != nil:
		start := time.Now()
		a, err := o.stager.Save(source.File)
		if err != nil {
			return types.WorkflowResult{}, errs.AsError(err).AtStage(StagePublish, time.Since(start))
		}
		artifact = a

		stageCtx, cancel := context.WithTimeout(ctx, min(o.cfg.UploadTimeout, rec.remaining()))
		url, err := o.stager.Publish(stageCtx, artifact)
		cancel()
		elapsed := time.Since(start)
		rec.observe(log.WithStage(id, StagePublish), StagePublish, elapsed, o.cfg.UploadTimeout)
		if err != nil {
			return types.WorkflowResult{}, errs.AsError(err).AtStage(StagePublish, elapsed)
		}
		media = types.ResolvedMedia{
			MediaURL: url,
			Platform: types.PlatformUpload,
			Title:    artifact.OriginalName,
		}

	default:
		return types.WorkflowResult{}, errs.New(errs.KindValidation, "Either URL or file must be provided")
	}

	if rec.remaining() <= 0 {
		return types.WorkflowResult{}, errs.New(errs.KindTranscriptionTimeout,
			"Total processing budget exhausted before transcription").AtStage(StageTranscribe, 0)
	}
	stageCtx, cancel := context.WithTimeout(ctx, min(o.cfg.ASRTimeout, rec.remaining()))
	start := time.Now()
	transcription, err := o.transcriber.Transcribe(stageCtx, media.MediaURL)
	cancel()
	elapsed := time.Since(start)
	rec.observe(log.WithStage(id, StageTranscribe), StageTranscribe, elapsed, o.cfg.ASRTimeout)
	if err != nil {
		return types.WorkflowResult{}, errs.AsError(err).AtStage(StageTranscribe, elapsed)
	}

	if rec.remaining() <= 0 {
		return types.WorkflowResult{}, errs.New(errs.KindAnalysisFailure,
			"Total processing budget exhausted before analysis").AtStage(StageAnalyze, 0)
	}
	// The analyzer budgets its own provider attempts; the stage deadline
	// only caps them at what is left of the total budget.
	stageCtx, cancel = context.WithTimeout(ctx, rec.remaining())
	start = time.Now()
	analysis, err := o.analyzer.Analyze(stageCtx, transcription.CleanedTranscript)
	cancel()
	elapsed = time.Since(start)
	rec.observe(log.WithStage(id, StageAnalyze), StageAnalyze, elapsed, 0)
	if err != nil {
		return types.WorkflowResult{}, errs.AsError(err).AtStage(StageAnalyze, elapsed)
	}

	result := types.WorkflowResult{
		CorrelationID: id,
		ResolvedMedia: media,
		Transcription: transcription,
		Analysis:      analysis,
		StageTimings:  rec.list(),
	}

	total := rec.elapsed()
	entry := log.WithField("correlation_id", id).
		WithField("platform", string(media.Platform)).
		WithField("total_ms", total.Milliseconds())
	if total > o.cfg.TotalBudget {
		entry.Warn("pipeline complete over total budget")
	} else {
		entry.Info("pipeline complete")
	}
	return result, nil
}
