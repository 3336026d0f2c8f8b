// Package storage holds the object-store port used by the stager and
// its Aliyun OSS implementation.
package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"scriptparser-go/internal/config"
	"scriptparser-go/internal/errs"
	"scriptparser-go/internal/logger"
)

// ObjectStore is everything the stager needs from object storage: one
// public-read upload that hands back a stable URL.
type ObjectStore interface {
	PutPublic(ctx context.Context, localPath, key string) (string, error)
}

// OSSStore implements ObjectStore on Aliyun OSS. The client is built
// and the bucket ensured lazily on the first upload, so URL-only
// deployments never touch OSS at all.
type OSSStore struct {
	cfg      config.OSSConfig
	endpoint string

	mu      sync.Mutex
	client  *oss.Client
	ensured bool
}

func NewOSS(cfg config.OSSConfig) *OSSStore {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	return &OSSStore{cfg: cfg, endpoint: endpoint}
}

func (s *OSSStore) PutPublic(ctx context.Context, localPath, key string) (string, error) {
	bucket, err := s.bucket()
	if err != nil {
		return "", err
	}

	opts := []oss.Option{
		oss.ObjectACL(oss.ACLPublicRead),
		oss.WithContext(ctx),
	}
	if err := bucket.PutObjectFromFile(key, localPath, opts...); err != nil {
		return "", errs.Wrap(errs.KindPublish, "OSS service is temporarily unavailable", err)
	}
	return fmt.Sprintf("https://%s.%s/%s", s.cfg.Bucket, s.endpoint, key), nil
}

// bucket lazily builds the client and makes sure the bucket exists
// with a public-read ACL.
func (s *OSSStore) bucket() (*oss.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		c, err := oss.New("https://"+s.endpoint, s.cfg.AccessKeyID, s.cfg.AccessKeySecret)
		if err != nil {
			return nil, errs.Wrap(errs.KindPublish, "OSS client initialization failed", err)
		}
		s.client = c
	}

	if !s.ensured {
		exists, err := s.client.IsBucketExist(s.cfg.Bucket)
		if err != nil {
			return nil, errs.Wrap(errs.KindPublish, "OSS service is temporarily unavailable", err)
		}
		if !exists {
			if err := s.client.CreateBucket(s.cfg.Bucket, oss.ACL(oss.ACLPublicRead)); err != nil {
				return nil, errs.Wrap(errs.KindPublish, "OSS bucket creation failed", err)
			}
			logger.New().WithField("component", "oss").
				WithField("bucket", s.cfg.Bucket).Info("created missing bucket")
		}
		s.ensured = true
	}

	b, err := s.client.Bucket(s.cfg.Bucket)
	if err != nil {
		return nil, errs.Wrap(errs.KindPublish, "OSS service is temporarily unavailable", err)
	}
	return b, nil
}
