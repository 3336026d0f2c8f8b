package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	err := New(KindMalformedShare, "bad link")
	assert.Equal(t, KindMalformedShare, KindOf(err))

	wrapped := fmt.Errorf("stage failed: %w", err)
	assert.Equal(t, KindMalformedShare, KindOf(wrapped))

	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.True(t, IsKind(wrapped, KindMalformedShare))
	assert.False(t, IsKind(nil, KindMalformedShare))
}

func TestAtStageReturnsCopy(t *testing.T) {
	orig := New(KindAnalysisFailure, "both providers failed")
	staged := orig.AtStage("analyze", 1500*time.Millisecond)

	assert.Empty(t, orig.Stage)
	assert.Equal(t, "analyze", staged.Stage)
	assert.EqualValues(t, 1500, staged.ElapsedMs)
	assert.Equal(t, orig.Kind, staged.Kind)
	assert.Equal(t, orig.Message, staged.Message)
	assert.Contains(t, staged.Error(), "stage=analyze")
}

func TestUnwrapChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindTranscriptionFailure, "transcribe call failed", cause)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestBusinessCodes(t *testing.T) {
	cases := []struct {
		kind Kind
		code int
	}{
		{KindMalformedShare, 4001},
		{KindValidation, 4002},
		{KindUnsupportedPlatform, 4003},
		{KindTranscriptionFailure, 5001},
		{KindAnalysisFailure, 5002},
		{KindStorage, 5003},
		{KindPublish, 5004},
		{KindInitialization, 5005},
		{KindTranscriptionTimeout, 5006},
		{KindResolveUpstream, 5007},
		{KindUnknown, 9999},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, BusinessCode(New(tc.kind, "x")), tc.kind.String())
	}
	assert.Equal(t, CodeSuccess, BusinessCode(nil))
	assert.Equal(t, CodeUnknown, BusinessCode(errors.New("untyped")))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(New(KindUnsupportedPlatform, "x")))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(New(KindTranscriptionTimeout, "x")))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(New(KindAnalysisFailure, "x")))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(New(KindResolveUpstream, "x")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("untyped")))
}

func TestUserMessageNeverEchoesCause(t *testing.T) {
	cause := errors.New(`upstream said: {"secret":"internal stack trace"}`)
	err := Wrap(KindPublish, "upload rejected", cause)

	msg := UserMessage(err)
	assert.Equal(t, "upload rejected", msg)
	assert.NotContains(t, msg, "secret")

	// untyped errors fall back to the generic wording
	assert.Equal(t, "An internal server error occurred", UserMessage(cause))
	// typed error without a message falls back to the table default
	assert.Equal(t, "Failed to parse video URL", UserMessage(&Error{Kind: KindMalformedShare}))
}
