package store

import (
	"context"
	"fmt"
	"mime"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Material is one downloadable course file. URL, when set, is a
// time-limited link the client can fetch directly.
type Material struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
	URL         string `json:"url,omitempty"`
}

// MaterialStore serves course files. Objects live under a per-course
// prefix; listings come back sorted by key.
type MaterialStore interface {
	ListMaterials(ctx context.Context, courseID string) ([]Material, error)
	MaterialURL(ctx context.Context, courseID, key string) (string, error)
}

type MinioConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLTTL    time.Duration
}

// MinioMaterials keeps course files in an S3-compatible bucket, one
// course per key prefix.
type MinioMaterials struct {
	client   *minio.Client
	bucket   string
	region   string
	urlTTL   time.Duration
	initOnce sync.Once
	initErr  error
}

var _ MaterialStore = (*MinioMaterials)(nil)

func NewMinioMaterials(cfg MinioConfig) (*MinioMaterials, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("store: materials endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("store: materials access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("store: materials bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("store: init materials client: %w", err)
	}
	return &MinioMaterials{client: client, bucket: bucket, region: region, urlTTL: ttl}, nil
}

func (s *MinioMaterials) ensureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("store: materials store is nil")
	}
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

func (s *MinioMaterials) ListMaterials(ctx context.Context, courseID string) ([]Material, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, fmt.Errorf("store: course id is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("store: ensure materials bucket: %w", err)
	}

	prefix := courseID + "/"
	out := make([]Material, 0, 16)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if obj.Key == "" || strings.HasSuffix(obj.Key, "/") {
			continue
		}
		key := strings.TrimPrefix(obj.Key, prefix)
		m := Material{
			Key:         key,
			Name:        path.Base(key),
			ContentType: mime.TypeByExtension(path.Ext(key)),
			Size:        obj.Size,
		}
		if u, err := s.client.PresignedGetObject(ctx, s.bucket, obj.Key, s.urlTTL, nil); err == nil {
			m.URL = u.String()
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MinioMaterials) MaterialURL(ctx context.Context, courseID, key string) (string, error) {
	courseID = strings.TrimSpace(courseID)
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if courseID == "" || key == "" {
		return "", fmt.Errorf("store: course id and key are required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("store: ensure materials bucket: %w", err)
	}

	full := courseID + "/" + key
	if _, err := s.client.StatObject(ctx, s.bucket, full, minio.StatObjectOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return "", ErrNotFound
		}
		return "", err
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, full, s.urlTTL, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
