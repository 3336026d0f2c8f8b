package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/cors"

	"scriptparser-go/internal/config"
	"scriptparser-go/internal/errs"
	"scriptparser-go/internal/logger"
	"scriptparser-go/internal/staging"
	"scriptparser-go/internal/types"
)

// runner is the slice of the orchestrator the HTTP layer depends on.
type runner interface {
	Run(ctx context.Context, source types.VideoSource) (types.WorkflowResult, error)
}

type server struct {
	cfg    *config.Config
	stager *staging.Stager
	orch   runner
}

// envelope is the uniform shape of every /api/parse response.
type envelope struct {
	Success          bool   `json:"success"`
	Code             int    `json:"code"`
	Data             any    `json:"data"`
	Message          string `json:"message"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /api/parse", s.handleParse)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "scriptparser-go",
		"status":  "ok",
	})
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	logger.New().WithRequest(r).Info("health check")
	fmt.Fprint(w, "ok")
}

func (s *server) handleParse(w http.ResponseWriter, r *http.Request) {
	reqLog := logger.New().WithRequest(r).WithField("handler", "parse")
	reqLog.Info("parse request received")
	start := time.Now()

	source, release, err := s.readSource(w, r)
	defer release()

	if err == nil && source.File != nil && !s.stager.CanPublish() {
		err = errs.New(errs.KindPublish, "File uploads are not configured on this deployment")
	}

	var result types.WorkflowResult
	if err == nil {
		result, err = s.orch.Run(r.Context(), source)
	}

	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		code := errs.BusinessCode(err)
		reqLog.WithError(err).
			WithField("code", code).
			WithField("duration_ms", elapsed).Warn("parse request failed")
		writeJSON(w, errs.HTTPStatus(err), envelope{
			Success:          false,
			Code:             code,
			Message:          errs.UserMessage(err),
			ProcessingTimeMs: elapsed,
		})
		return
	}

	reqLog.WithField("code", errs.CodeSuccess).
		WithField("correlation_id", result.CorrelationID).
		WithField("duration_ms", elapsed).Info("parse request complete")
	writeJSON(w, http.StatusOK, envelope{
		Success:          true,
		Code:             errs.CodeSuccess,
		Data:             result,
		Message:          "Processing completed successfully",
		ProcessingTimeMs: elapsed,
	})
}

// readSource normalizes a request body into a VideoSource. The release
// func removes the handler's temp copy of an upload and is always safe
// to call.
func (s *server) readSource(w http.ResponseWriter, r *http.Request) (types.VideoSource, func(), error) {
	release := func() {}

	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch contentType {
	case "multipart/form-data":
		return s.readUpload(w, r)

	case "application/x-www-form-urlencoded":
		return types.VideoSource{}, release, errs.New(errs.KindValidation, "URL should be sent as JSON, not form data")

	default:
		var body struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			if errors.Is(err, io.EOF) {
				return types.VideoSource{}, release, errs.New(errs.KindValidation, "Either URL or file must be provided")
			}
			return types.VideoSource{}, release, errs.New(errs.KindValidation, "Invalid JSON format in request body")
		}
		url := strings.TrimSpace(body.URL)
		if url == "" {
			return types.VideoSource{}, release, errs.New(errs.KindValidation, "Either URL or file must be provided")
		}
		return types.VideoSource{URL: &types.URLSource{RawText: url}}, release, nil
	}
}

func (s *server) readUpload(w http.ResponseWriter, r *http.Request) (types.VideoSource, func(), error) {
	release := func() {}

	// Hard transport cap with room for multipart framing; the stager
	// re-checks the exact limit.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return types.VideoSource{}, release, errs.Newf(errs.KindStorage, "File exceeds the maximum upload size of %d bytes", s.cfg.MaxUploadSize)
		case errors.Is(err, http.ErrMissingFile):
			if r.FormValue("url") != "" {
				return types.VideoSource{}, release, errs.New(errs.KindValidation, "URL should be sent as JSON, not form data")
			}
			return types.VideoSource{}, release, errs.New(errs.KindValidation, "Either URL or file must be provided")
		default:
			return types.VideoSource{}, release, errs.New(errs.KindValidation, "Invalid multipart form data")
		}
	}
	defer file.Close()

	if header.Size > s.cfg.MaxUploadSize {
		return types.VideoSource{}, release, errs.Newf(errs.KindStorage, "File exceeds the maximum upload size of %d bytes", s.cfg.MaxUploadSize)
	}

	tmp, err := os.CreateTemp("", "scriptparser-upload-*")
	if err != nil {
		return types.VideoSource{}, release, errs.Wrap(errs.KindStorage, "File processing error", err)
	}
	release = func() { os.Remove(tmp.Name()) }

	n, err := io.Copy(tmp, file)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return types.VideoSource{}, release, errs.Wrap(errs.KindStorage, "File processing error", err)
	}

	return types.VideoSource{File: &types.FileSource{
		TempPath:     tmp.Name(),
		OriginalName: header.Filename,
		SizeBytes:    n,
	}}, release, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.New().WithError(err).Error("failed to write response")
	}
}
