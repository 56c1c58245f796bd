package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	domain "github.com/bryanwahyu/wildlife-dashboard/internal/domain/detections"
)

// ObjectLister is the slice of the minio client the store needs.
type ObjectLister interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

type Store struct {
	client        ObjectLister
	bucketName    string
	publicBaseURL string
	presignExpiry time.Duration
}

type Options struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PublicBaseURL string
	PresignExpiry time.Duration
}

// New buat koneksi MinIO. Bucket harus sudah ada, dashboard tidak pernah menulis.
func New(ctx context.Context, opts Options) (*Store, error) {
	cli, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", opts.Bucket)
	}

	return NewWithClient(cli, opts), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client ObjectLister, opts Options) *Store {
	expiry := opts.PresignExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &Store{
		client:        client,
		bucketName:    opts.Bucket,
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		presignExpiry: expiry,
	}
}

// ListAssets implementasi AssetSource. Objects under "<folder>/" become
// assets: identifier is the key without extension, created_at is
// LastModified in RFC 3339 UTC. Sorted newest first, capped at q.Limit.
func (s *Store) ListAssets(ctx context.Context, q domain.AssetQuery) ([]domain.RawAsset, error) {
	prefix := strings.Trim(q.Folder, "/")
	if prefix != "" {
		prefix += "/"
	}

	var objects []minio.ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", s.bucketName, prefix, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		objects = append(objects, obj)
	}

	sort.SliceStable(objects, func(i, j int) bool {
		if q.SortOrder == "asc" {
			return objects[i].LastModified.Before(objects[j].LastModified)
		}
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	if q.Limit > 0 && len(objects) > q.Limit {
		objects = objects[:q.Limit]
	}

	out := make([]domain.RawAsset, 0, len(objects))
	for _, obj := range objects {
		u, err := s.objectURL(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.RawAsset{
			Identifier: strings.TrimSuffix(obj.Key, path.Ext(obj.Key)),
			CreatedAt:  obj.LastModified.UTC().Format(time.RFC3339),
			URL:        u,
		})
	}
	return out, nil
}

// URL publik (jika bucket public), kalau private harus generate presigned URL
func (s *Store) objectURL(ctx context.Context, key string) (string, error) {
	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucketName, key), nil
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, s.presignExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

// Check implements the health checker.
func (s *Store) Check(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %q not found", s.bucketName)
	}
	return nil
}
