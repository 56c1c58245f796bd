package storage

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/wildlife-dashboard/internal/domain/detections"
)

type fakeLister struct {
	objects    []minio.ObjectInfo
	gotPrefix  string
	gotBucket  string
	presignErr error
}

func (f *fakeLister) ListObjects(_ context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	f.gotBucket = bucket
	f.gotPrefix = opts.Prefix
	ch := make(chan minio.ObjectInfo, len(f.objects))
	for _, o := range f.objects {
		ch <- o
	}
	close(ch)
	return ch
}

func (f *fakeLister) PresignedGetObject(_ context.Context, bucket, key string, _ time.Duration, _ url.Values) (*url.URL, error) {
	if f.presignErr != nil {
		return nil, f.presignErr
	}
	return &url.URL{Scheme: "https", Host: "s3.local", Path: "/" + bucket + "/" + key, RawQuery: "X-Amz-Signature=sig"}, nil
}

func (f *fakeLister) BucketExists(context.Context, string) (bool, error) { return true, nil }

func ts(h int) time.Time { return time.Date(2024, 1, 1, h, 0, 0, 0, time.UTC) }

func TestListAssetsNewestFirstAndCapped(t *testing.T) {
	f := &fakeLister{objects: []minio.ObjectInfo{
		{Key: "railway_wildlife/cow_1.jpg", LastModified: ts(1)},
		{Key: "railway_wildlife/", LastModified: ts(0)},
		{Key: "railway_wildlife/deer_1.jpg", LastModified: ts(3)},
		{Key: "railway_wildlife/elephant_1.png", LastModified: ts(2)},
	}}
	s := NewWithClient(f, Options{Bucket: "media", PublicBaseURL: "https://cdn.example.com/"})

	got, err := s.ListAssets(context.Background(), domain.NewAssetQuery("railway_wildlife", 2))
	require.NoError(t, err)

	assert.Equal(t, "media", f.gotBucket)
	assert.Equal(t, "railway_wildlife/", f.gotPrefix)
	assert.Equal(t, []domain.RawAsset{
		{Identifier: "railway_wildlife/deer_1", CreatedAt: "2024-01-01T03:00:00Z", URL: "https://cdn.example.com/media/railway_wildlife/deer_1.jpg"},
		{Identifier: "railway_wildlife/elephant_1", CreatedAt: "2024-01-01T02:00:00Z", URL: "https://cdn.example.com/media/railway_wildlife/elephant_1.png"},
	}, got)
}

func TestListAssetsPresignsWithoutPublicURL(t *testing.T) {
	f := &fakeLister{objects: []minio.ObjectInfo{{Key: "f/car_1.jpg", LastModified: ts(1)}}}
	s := NewWithClient(f, Options{Bucket: "media"})

	got, err := s.ListAssets(context.Background(), domain.NewAssetQuery("f", 10))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://s3.local/media/f/car_1.jpg?X-Amz-Signature=sig", got[0].URL)
}

func TestListAssetsPropagatesListError(t *testing.T) {
	f := &fakeLister{objects: []minio.ObjectInfo{{Err: errors.New("access denied")}}}
	s := NewWithClient(f, Options{Bucket: "media"})

	_, err := s.ListAssets(context.Background(), domain.NewAssetQuery("f", 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestListAssetsClassifiable(t *testing.T) {
	f := &fakeLister{objects: []minio.ObjectInfo{{Key: "f/Elephant_20240101.jpg", LastModified: ts(12)}}}
	s := NewWithClient(f, Options{Bucket: "media", PublicBaseURL: "http://x"})

	got, err := s.ListAssets(context.Background(), domain.NewAssetQuery("f", 10))
	require.NoError(t, err)

	rec, err := domain.Classify(got[0], domain.DefaultCategories())
	require.NoError(t, err)
	assert.Equal(t, "Elephant", rec.Category)
	assert.True(t, rec.Timestamp.Equal(ts(12)))
}
