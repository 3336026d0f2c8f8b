// Package staging owns the transient artifacts of a single request:
// it copies uploads into a sandboxed staging directory, publishes them
// to object storage, and deletes what it created when the request ends.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"scriptparser-go/internal/config"
	"scriptparser-go/internal/errs"
	"scriptparser-go/internal/logger"
	"scriptparser-go/internal/storage"
	"scriptparser-go/internal/types"
)

// Artifact is one staged upload. LocalPath always points inside the
// staging directory; RemoteObjectKey and PublicURL are set only after
// a successful publish.
type Artifact struct {
	LocalPath       string
	OriginalName    string
	RemoteObjectKey string
	PublicURL       string
}

type Stager struct {
	dir      string
	maxBytes int64
	cfg      *config.Config
	store    storage.ObjectStore
	log      *logrus.Entry
}

// New builds a stager writing under cfg.StagingDir. store may be nil
// when object storage is not configured; Publish then fails and
// CanPublish reports false.
func New(cfg *config.Config, store storage.ObjectStore) *Stager {
	return &Stager{
		dir:      cfg.StagingDir,
		maxBytes: cfg.MaxUploadSize,
		cfg:      cfg,
		store:    store,
		log:      logger.New().WithField("component", "staging"),
	}
}

// CanPublish reports whether an object store is wired in.
func (s *Stager) CanPublish() bool {
	return s.store != nil
}

// Save validates the upload and copies it into the staging directory
// under a collision-free name. Nothing is written when validation
// fails.
func (s *Stager) Save(file *types.FileSource) (*Artifact, error) {
	if file == nil || file.TempPath == "" {
		return nil, errs.New(errs.KindStorage, "No upload to stage")
	}
	if s.maxBytes > 0 && file.SizeBytes > s.maxBytes {
		return nil, errs.Newf(errs.KindStorage, "File exceeds the maximum upload size of %d bytes", s.maxBytes)
	}

	name, err := sanitizeFilename(file.OriginalName)
	if err != nil {
		return nil, err
	}
	if !s.cfg.ExtensionAllowed(name) {
		return nil, errs.Newf(errs.KindStorage, "File type is not allowed: %s", filepath.Ext(name))
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, errs.Wrap(errs.KindStorage, "File processing error", err)
	}

	dest := filepath.Join(s.dir, uuid.New().String()+"-"+name)
	if err := copyFile(file.TempPath, dest); err != nil {
		return nil, errs.Wrap(errs.KindStorage, "File processing error", err)
	}

	s.log.WithField("staged_path", dest).
		WithField("size_bytes", file.SizeBytes).Debug("upload staged")
	return &Artifact{LocalPath: dest, OriginalName: name}, nil
}

// Publish uploads the artifact once and returns its public URL.
// Calling it again returns the URL from the first upload.
func (s *Stager) Publish(ctx context.Context, a *Artifact) (string, error) {
	if a == nil || a.LocalPath == "" {
		return "", errs.New(errs.KindPublish, "No staged artifact to publish")
	}
	if a.PublicURL != "" {
		return a.PublicURL, nil
	}
	if s.store == nil {
		return "", errs.New(errs.KindPublish, "File uploads are not configured on this deployment")
	}

	key := fmt.Sprintf("audio/%s_%s", time.Now().Format("20060102150405"), filepath.Base(a.LocalPath))
	url, err := s.store.PutPublic(ctx, a.LocalPath, key)
	if err != nil {
		return "", err
	}

	a.RemoteObjectKey = key
	a.PublicURL = url
	s.log.WithField("object_key", key).Info("artifact published")
	return url, nil
}

// Cleanup removes the staged file. It never returns an error and is
// safe to call more than once; failures beyond "already gone" are
// logged and swallowed.
func (s *Stager) Cleanup(a *Artifact) {
	if a == nil || a.LocalPath == "" {
		return
	}
	if err := os.Remove(a.LocalPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.WithError(err).WithField("staged_path", a.LocalPath).Warn("cleanup failed")
	}
}

// sanitizeFilename strips path components and control characters and
// rejects names that would vanish or hide in the staging directory.
func sanitizeFilename(original string) (string, error) {
	name := filepath.Base(strings.TrimSpace(original))
	// filepath.Base leaves backslash-separated Windows paths intact on
	// Linux, so split those by hand.
	if i := strings.LastIndexByte(name, '\\'); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	name = b.String()

	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return "", errs.New(errs.KindStorage, "Invalid file name")
	}
	return name, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}
