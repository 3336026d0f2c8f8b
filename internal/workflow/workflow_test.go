package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scriptparser-go/internal/config"
	"scriptparser-go/internal/errs"
	"scriptparser-go/internal/llm"
	"scriptparser-go/internal/staging"
	"scriptparser-go/internal/types"
)

type fakeResolver struct {
	media  types.ResolvedMedia
	err    error
	calls  int
	text   string
	window time.Duration
}

func (f *fakeResolver) Resolve(ctx context.Context, shareText string) (types.ResolvedMedia, error) {
	f.calls++
	f.text = shareText
	if deadline, ok := ctx.Deadline(); ok {
		f.window = time.Until(deadline)
	}
	return f.media, f.err
}

type fakeStager struct {
	canPublish  bool
	saveErr     error
	publishErr  error
	publishURL  string
	saved       *staging.Artifact
	saves       int
	publishes   int
	cleanups    int
	cleanedWith []*staging.Artifact
}

func (f *fakeStager) CanPublish() bool { return f.canPublish }

func (f *fakeStager) Save(file *types.FileSource) (*staging.Artifact, error) {
	f.saves++
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.saved = &staging.Artifact{LocalPath: "/tmp/staged/" + file.OriginalName, OriginalName: file.OriginalName}
	return f.saved, nil
}

func (f *fakeStager) Publish(ctx context.Context, a *staging.Artifact) (string, error) {
	f.publishes++
	if f.publishErr != nil {
		return "", f.publishErr
	}
	a.PublicURL = f.publishURL
	return f.publishURL, nil
}

func (f *fakeStager) Cleanup(a *staging.Artifact) {
	f.cleanups++
	f.cleanedWith = append(f.cleanedWith, a)
}

type fakeTranscriber struct {
	result types.TranscriptionResult
	err    error
	delay  time.Duration
	calls  int
	gotURL string
	window time.Duration
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, mediaURL string) (types.TranscriptionResult, error) {
	f.calls++
	f.gotURL = mediaURL
	if deadline, ok := ctx.Deadline(); ok {
		f.window = time.Until(deadline)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.result, f.err
}

type fakeAnalyzer struct {
	result        types.AnalysisResult
	err           error
	calls         int
	gotTranscript string
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, transcript string) (types.AnalysisResult, error) {
	f.calls++
	f.gotTranscript = transcript
	return f.result, f.err
}

func testConfig() *config.Config {
	return &config.Config{
		TotalBudget:    50 * time.Second,
		ResolveTimeout: 10 * time.Second,
		ASRTimeout:     120 * time.Second,
		LLMTimeout:     30 * time.Second,
		UploadTimeout:  60 * time.Second,
	}
}

func douyinMedia() types.ResolvedMedia {
	return types.ResolvedMedia{
		MediaURL:        "https://cdn.example.com/video.mp4",
		Platform:        types.PlatformDouyin,
		PlatformVideoID: "7123456789",
		Title:           "产品介绍",
	}
}

func transcription() types.TranscriptionResult {
	return types.TranscriptionResult{RawTranscript: "嗯 hello world", CleanedTranscript: "hello world"}
}

func analysis() types.AnalysisResult {
	return types.AnalysisResult{Hook: "H", Core: "C", CTA: "T", KeyQuotes: []string{}}
}

func urlSource() types.VideoSource {
	return types.VideoSource{URL: &types.URLSource{RawText: "看看这个 https://v.douyin.com/abc/"}}
}

func fileSource() types.VideoSource {
	return types.VideoSource{File: &types.FileSource{TempPath: "/tmp/upload", OriginalName: "demo.mp4", SizeBytes: 1024}}
}

func stageNames(timings []types.StageTiming) []string {
	names := make([]string, 0, len(timings))
	for _, tm := range timings {
		names = append(names, tm.Stage)
	}
	return names
}

func TestRunURLBranch(t *testing.T) {
	resolver := &fakeResolver{media: douyinMedia()}
	stager := &fakeStager{canPublish: true}
	transcriber := &fakeTranscriber{result: transcription()}
	analyzer := &fakeAnalyzer{result: analysis()}
	o := New(testConfig(), resolver, stager, transcriber, analyzer)

	result, err := o.Run(context.Background(), urlSource())
	require.NoError(t, err)

	assert.NotEmpty(t, result.CorrelationID)
	assert.Equal(t, douyinMedia(), result.ResolvedMedia)
	assert.Equal(t, transcription(), result.Transcription)
	assert.Equal(t, analysis(), result.Analysis)
	assert.Equal(t, []string{StageResolve, StageTranscribe, StageAnalyze}, stageNames(result.StageTimings))
	for _, tm := range result.StageTimings {
		assert.GreaterOrEqual(t, tm.DurationMs, int64(0))
	}

	assert.Equal(t, "看看这个 https://v.douyin.com/abc/", resolver.text)
	assert.Equal(t, "https://cdn.example.com/video.mp4", transcriber.gotURL)
	assert.Equal(t, "hello world", analyzer.gotTranscript)
	assert.Zero(t, stager.saves)
	assert.Equal(t, 1, stager.cleanups)
}

func TestRunFileBranch(t *testing.T) {
	resolver := &fakeResolver{}
	stager := &fakeStager{canPublish: true, publishURL: "https://bucket.oss.example.com/audio/x-demo.mp4"}
	transcriber := &fakeTranscriber{result: transcription()}
	analyzer := &fakeAnalyzer{result: analysis()}
	o := New(testConfig(), resolver, stager, transcriber, analyzer)

	result, err := o.Run(context.Background(), fileSource())
	require.NoError(t, err)

	assert.Equal(t, types.PlatformUpload, result.ResolvedMedia.Platform)
	assert.Equal(t, "https://bucket.oss.example.com/audio/x-demo.mp4", result.ResolvedMedia.MediaURL)
	assert.Equal(t, "demo.mp4", result.ResolvedMedia.Title)
	assert.Equal(t, []string{StagePublish, StageTranscribe, StageAnalyze}, stageNames(result.StageTimings))

	assert.Zero(t, resolver.calls)
	assert.Equal(t, 1, stager.saves)
	assert.Equal(t, 1, stager.publishes)
	require.Equal(t, 1, stager.cleanups)
	assert.Same(t, stager.saved, stager.cleanedWith[0])
}

func TestRunResolveFailureStopsPipeline(t *testing.T) {
	resolver := &fakeResolver{err: errs.New(errs.KindMalformedShare, "Could not extract a video id from the share link")}
	stager := &fakeStager{canPublish: true}
	transcriber := &fakeTranscriber{}
	analyzer := &fakeAnalyzer{}
	o := New(testConfig(), resolver, stager, transcriber, analyzer)

	_, err := o.Run(context.Background(), urlSource())
	require.Error(t, err)
	assert.Equal(t, errs.KindMalformedShare, errs.KindOf(err))
	assert.Equal(t, StageResolve, errs.AsError(err).Stage)
	assert.Zero(t, transcriber.calls)
	assert.Zero(t, analyzer.calls)
	assert.Equal(t, 1, stager.cleanups)
}

func TestRunTranscriptionTimeoutCleansArtifact(t *testing.T) {
	stager := &fakeStager{canPublish: true, publishURL: "https://bucket.oss.example.com/audio/x-demo.mp4"}
	transcriber := &fakeTranscriber{err: errs.New(errs.KindTranscriptionTimeout, "ASR processing timed out")}
	analyzer := &fakeAnalyzer{}
	o := New(testConfig(), &fakeResolver{}, stager, transcriber, analyzer)

	_, err := o.Run(context.Background(), fileSource())
	require.Error(t, err)
	assert.Equal(t, errs.KindTranscriptionTimeout, errs.KindOf(err))
	assert.Equal(t, StageTranscribe, errs.AsError(err).Stage)
	assert.Zero(t, analyzer.calls)
	require.Equal(t, 1, stager.cleanups)
	assert.Same(t, stager.saved, stager.cleanedWith[0])
}

func TestRunOversizeUploadFailsBeforeAnyNetworkCall(t *testing.T) {
	resolver := &fakeResolver{}
	stager := &fakeStager{canPublish: true, saveErr: errs.New(errs.KindStorage, "File exceeds the maximum upload size of 3 bytes")}
	transcriber := &fakeTranscriber{}
	analyzer := &fakeAnalyzer{}
	o := New(testConfig(), resolver, stager, transcriber, analyzer)

	_, err := o.Run(context.Background(), fileSource())
	require.Error(t, err)
	assert.Equal(t, errs.KindStorage, errs.KindOf(err))
	assert.Zero(t, resolver.calls)
	assert.Zero(t, stager.publishes)
	assert.Zero(t, transcriber.calls)
	assert.Zero(t, analyzer.calls)
	assert.Equal(t, 1, stager.cleanups)
}

func TestRunPublishFailurePassesKindThrough(t *testing.T) {
	stager := &fakeStager{canPublish: true, publishErr: errs.New(errs.KindPublish, "OSS service is temporarily unavailable")}
	transcriber := &fakeTranscriber{}
	o := New(testConfig(), &fakeResolver{}, stager, transcriber, &fakeAnalyzer{})

	_, err := o.Run(context.Background(), fileSource())
	require.Error(t, err)
	assert.Equal(t, errs.KindPublish, errs.KindOf(err))
	assert.Equal(t, StagePublish, errs.AsError(err).Stage)
	assert.Zero(t, transcriber.calls)
	require.Equal(t, 1, stager.cleanups)
	assert.Same(t, stager.saved, stager.cleanedWith[0], "failed publish still cleans the staged copy")
}

func TestRunFailsFastWhenBudgetGoneBeforeTranscribe(t *testing.T) {
	cfg := testConfig()
	cfg.TotalBudget = time.Nanosecond

	transcriber := &fakeTranscriber{result: transcription()}
	stager := &fakeStager{canPublish: true}
	o := New(cfg, &fakeResolver{media: douyinMedia()}, stager, transcriber, &fakeAnalyzer{})

	_, err := o.Run(context.Background(), urlSource())
	require.Error(t, err)
	assert.Equal(t, errs.KindTranscriptionTimeout, errs.KindOf(err))
	assert.Equal(t, StageTranscribe, errs.AsError(err).Stage)
	assert.Contains(t, err.Error(), "budget exhausted")
	assert.Zero(t, transcriber.calls, "a doomed stage must not be started")
	assert.Equal(t, 1, stager.cleanups)
}

func TestRunFailsFastWhenBudgetGoneBeforeAnalyze(t *testing.T) {
	cfg := testConfig()
	cfg.TotalBudget = 20 * time.Millisecond

	analyzer := &fakeAnalyzer{result: analysis()}
	transcriber := &fakeTranscriber{result: transcription(), delay: 40 * time.Millisecond}
	o := New(cfg, &fakeResolver{media: douyinMedia()}, &fakeStager{canPublish: true}, transcriber, analyzer)

	_, err := o.Run(context.Background(), urlSource())
	require.Error(t, err)
	assert.Equal(t, errs.KindAnalysisFailure, errs.KindOf(err))
	assert.Equal(t, StageAnalyze, errs.AsError(err).Stage)
	assert.Contains(t, err.Error(), "budget exhausted")
	assert.Zero(t, analyzer.calls, "a doomed stage must not be started")
}

func TestRunClampsStageDeadlinesToRemainingBudget(t *testing.T) {
	cfg := testConfig()
	cfg.TotalBudget = 10 * time.Second
	cfg.ResolveTimeout = 3 * time.Second
	cfg.ASRTimeout = 120 * time.Second

	resolver := &fakeResolver{media: douyinMedia()}
	transcriber := &fakeTranscriber{result: transcription()}
	o := New(cfg, resolver, &fakeStager{canPublish: true}, transcriber, &fakeAnalyzer{result: analysis()})

	_, err := o.Run(context.Background(), urlSource())
	require.NoError(t, err)

	// resolve gets its own (smaller) stage budget
	assert.Greater(t, resolver.window, 2*time.Second)
	assert.LessOrEqual(t, resolver.window, 3*time.Second)
	// transcribe is clamped by the total budget, not its 120s stage budget
	assert.Greater(t, transcriber.window, 8*time.Second)
	assert.LessOrEqual(t, transcriber.window, 10*time.Second)
}

func TestRunRejectsEmptySource(t *testing.T) {
	stager := &fakeStager{canPublish: true}
	o := New(testConfig(), &fakeResolver{}, stager, &fakeTranscriber{}, &fakeAnalyzer{})

	_, err := o.Run(context.Background(), types.VideoSource{})
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	assert.Contains(t, err.Error(), "Either URL or file must be provided")
	assert.Equal(t, 1, stager.cleanups)
}

func TestRunWrapsUntypedErrors(t *testing.T) {
	transcriber := &fakeTranscriber{err: errors.New("boom")}
	o := New(testConfig(), &fakeResolver{media: douyinMedia()}, &fakeStager{canPublish: true}, transcriber, &fakeAnalyzer{})

	_, err := o.Run(context.Background(), urlSource())
	require.Error(t, err)
	assert.Equal(t, errs.KindUnknown, errs.KindOf(err))
	assert.Equal(t, StageTranscribe, errs.AsError(err).Stage)
}

type scriptedProvider struct {
	name   string
	result types.AnalysisResult
	err    error
	calls  int
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Analyze(ctx context.Context, transcript string) (types.AnalysisResult, error) {
	p.calls++
	return p.result, p.err
}

func TestRunFailsOverThroughRealRouter(t *testing.T) {
	primary := &scriptedProvider{name: "primary", err: errs.New(errs.KindAnalysisFailure, "request timed out")}
	backup := &scriptedProvider{name: "backup", result: analysis()}
	router := llm.NewRouter(time.Second, primary, backup)

	o := New(testConfig(), &fakeResolver{media: douyinMedia()}, &fakeStager{canPublish: true},
		&fakeTranscriber{result: transcription()}, router)

	result, err := o.Run(context.Background(), urlSource())
	require.NoError(t, err)
	assert.Equal(t, analysis(), result.Analysis)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, backup.calls)
}
