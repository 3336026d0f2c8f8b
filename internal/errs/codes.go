package errs

import "net/http"

// Business codes carried in the response envelope. 4xxx are client
// input problems, 5xxx are server/upstream problems, 9999 is the
// catch-all.
const (
	CodeSuccess              = 0
	CodeMalformedShare       = 4001
	CodeValidation           = 4002
	CodeUnsupportedPlatform  = 4003
	CodeTranscriptionFailure = 5001
	CodeAnalysisFailure      = 5002
	CodeStorage              = 5003
	CodePublish              = 5004
	CodeInitialization       = 5005
	CodeTranscriptionTimeout = 5006
	CodeResolveUpstream      = 5007
	CodeUnknown              = 9999
)

type mapping struct {
	code    int
	status  int
	message string
}

// One row per taxonomy kind. The message is the fallback wording when
// the error itself carries none.
var mappings = map[Kind]mapping{
	KindMalformedShare:       {CodeMalformedShare, http.StatusBadRequest, "Failed to parse video URL"},
	KindValidation:           {CodeValidation, http.StatusBadRequest, "Invalid request"},
	KindUnsupportedPlatform:  {CodeUnsupportedPlatform, http.StatusBadRequest, "Unsupported video platform"},
	KindTranscriptionFailure: {CodeTranscriptionFailure, http.StatusServiceUnavailable, "ASR service is temporarily unavailable"},
	KindAnalysisFailure:      {CodeAnalysisFailure, http.StatusBadGateway, "LLM service error occurred"},
	KindStorage:              {CodeStorage, http.StatusInternalServerError, "File processing error"},
	KindPublish:              {CodePublish, http.StatusServiceUnavailable, "OSS service is temporarily unavailable"},
	KindInitialization:       {CodeInitialization, http.StatusInternalServerError, "Service initialization failed"},
	KindTranscriptionTimeout: {CodeTranscriptionTimeout, http.StatusGatewayTimeout, "ASR processing timed out"},
	KindResolveUpstream:      {CodeResolveUpstream, http.StatusServiceUnavailable, "Video platform is temporarily unavailable"},
}

var unknownMapping = mapping{CodeUnknown, http.StatusInternalServerError, "An internal server error occurred"}

func lookup(err error) mapping {
	if m, ok := mappings[KindOf(err)]; ok {
		return m
	}
	return unknownMapping
}

// BusinessCode maps an error chain to its stable response code.
func BusinessCode(err error) int {
	if err == nil {
		return CodeSuccess
	}
	return lookup(err).code
}

// HTTPStatus maps an error chain to the HTTP status of the envelope.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return lookup(err).status
}

// UserMessage returns the caller-visible message: the curated message
// on the typed error when present, the per-kind default otherwise.
// Causes (raw upstream bodies included) are never part of it.
func UserMessage(err error) string {
	if err == nil {
		return "Processing completed successfully"
	}
	if e := AsError(err); e.Kind != KindUnknown && e.Message != "" {
		return e.Message
	}
	return lookup(err).message
}
