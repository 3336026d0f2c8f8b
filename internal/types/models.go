package types

// Platform identifies where a piece of video content is hosted.
type Platform string

const (
	PlatformDouyin      Platform = "douyin"
	PlatformXiaohongshu Platform = "xiaohongshu"
	// PlatformUpload marks media that entered through the file branch
	// rather than a share link.
	PlatformUpload Platform = "upload"
)

// VideoSource is the normalized input of one pipeline run. Exactly one
// of URL/File is set; the ingress layer guarantees that before handing
// the source to the orchestrator.
type VideoSource struct {
	URL  *URLSource
	File *FileSource
}

// URLSource carries the share text as the user pasted it, marketing
// copy and all.
type URLSource struct {
	RawText string
}

// FileSource describes an upload already streamed to a temp location
// by the ingress layer.
type FileSource struct {
	TempPath     string
	OriginalName string
	SizeBytes    int64
}

// ResolvedMedia is the directly fetchable form of a video reference,
// produced once per request and never mutated afterward.
type ResolvedMedia struct {
	MediaURL        string   `json:"media_url"`
	Platform        Platform `json:"platform"`
	PlatformVideoID string   `json:"platform_video_id"`
	Title           string   `json:"title"`
}

type TranscriptionResult struct {
	RawTranscript     string `json:"raw_transcript"`
	CleanedTranscript string `json:"cleaned_transcript"`
}

// AnalysisResult is the schema-validated output of the structured
// analysis. Hook/Core/CTA are mandatory; KeyQuotes may be empty.
type AnalysisResult struct {
	Hook      string   `json:"hook"`
	Core      string   `json:"core"`
	CTA       string   `json:"cta"`
	KeyQuotes []string `json:"key_quotes"`
}

type StageTiming struct {
	Stage      string `json:"stage"`
	DurationMs int64  `json:"duration_ms"`
}

// WorkflowResult is the terminal output of one orchestration run.
type WorkflowResult struct {
	CorrelationID string              `json:"correlation_id"`
	ResolvedMedia ResolvedMedia       `json:"resolved_media"`
	Transcription TranscriptionResult `json:"transcription"`
	Analysis      AnalysisResult      `json:"analysis"`
	StageTimings  []StageTiming       `json:"stage_timings"`
}
