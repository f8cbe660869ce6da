package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultArtifactPath is where the index is written when no output is given.
const DefaultArtifactPath = "db/localrag.json"

// ArtifactStore persists and loads the index as a whole. Save must never
// expose a partially written artifact to concurrent readers.
type ArtifactStore interface {
	Save(ctx context.Context, idx *Index) error
	Load(ctx context.Context) (*Index, error)
	Location() string
}

// OpenStore picks a store by URI scheme: s3://bucket/key, gs://bucket/object
// or a local file path.
func OpenStore(ctx context.Context, uri string, opts SourceOptions) (ArtifactStore, error) {
	switch {
	case strings.HasPrefix(uri, "s3://"):
		bucket, key := splitBucketURI(strings.TrimPrefix(uri, "s3://"))
		if bucket == "" || key == "" {
			return nil, fmt.Errorf("s3 artifact must look like s3://bucket/key, got %q", uri)
		}
		client, err := newS3Client(ctx, opts)
		if err != nil {
			return nil, err
		}
		return NewS3Store(client, bucket, key), nil
	case strings.HasPrefix(uri, "gs://"):
		bucket, object := splitBucketURI(strings.TrimPrefix(uri, "gs://"))
		if bucket == "" || object == "" {
			return nil, fmt.Errorf("gcs artifact must look like gs://bucket/object, got %q", uri)
		}
		b, err := newGCSBucket(ctx, bucket, opts.GCSCredentials)
		if err != nil {
			return nil, err
		}
		return &GCSStore{bucket: b, object: object}, nil
	default:
		return NewFileStore(uri), nil
	}
}

func encodeIndex(idx *Index) ([]byte, error) {
	if err := idx.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to persist invalid index: %w", err)
	}
	data, err := json.Marshal(idx)
	if err != nil {
		return nil, fmt.Errorf("failed to encode index: %w", err)
	}
	return data, nil
}

func decodeIndex(r io.Reader, location string) (*Index, error) {
	var idx Index
	if err := json.NewDecoder(r).Decode(&idx); err != nil {
		return nil, fmt.Errorf("failed to decode index %s: %w", location, err)
	}
	if idx.IDF == nil {
		idx.IDF = map[string]float64{}
	}
	if err := idx.Validate(); err != nil {
		return nil, fmt.Errorf("index %s is corrupt: %w", location, err)
	}
	return &idx, nil
}

// FileStore writes to a temp file in the target directory and renames it
// over the artifact.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	if strings.TrimSpace(path) == "" {
		path = DefaultArtifactPath
	}
	return &FileStore{path: path}
}

func (s *FileStore) Location() string { return s.path }

func (s *FileStore) Save(_ context.Context, idx *Index) error {
	data, err := encodeIndex(idx)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp artifact: %w", err)
	}
	// CreateTemp makes the file 0600; the artifact is shared like any other output
	if err := tmp.Chmod(0o644); err != nil {
		cleanup()
		return fmt.Errorf("failed to set artifact mode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp artifact: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context) (*Index, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer f.Close()
	return decodeIndex(f, s.path)
}

// S3Store keeps the artifact as one object; PutObject replaces it atomically.
type S3Store struct {
	client S3API
	bucket string
	key    string
}

func NewS3Store(client S3API, bucket, key string) *S3Store {
	return &S3Store{client: client, bucket: bucket, key: key}
}

func (s *S3Store) Location() string { return "s3://" + s.bucket + "/" + s.key }

func (s *S3Store) Save(ctx context.Context, idx *Index) error {
	data, err := encodeIndex(idx)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", s.Location(), err)
	}
	return nil
}

func (s *S3Store) Load(ctx context.Context) (*Index, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", s.Location(), err)
	}
	defer out.Body.Close()
	return decodeIndex(out.Body, s.Location())
}

// GCSStore keeps the artifact as one GCS object.
type GCSStore struct {
	bucket objectBucket
	object string
}

func (s *GCSStore) Location() string { return "gs://" + s.bucket.Name() + "/" + s.object }

func (s *GCSStore) Save(ctx context.Context, idx *Index) error {
	data, err := encodeIndex(idx)
	if err != nil {
		return err
	}
	if err := s.bucket.Write(ctx, s.object, "application/json", data); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.Location(), err)
	}
	return nil
}

func (s *GCSStore) Load(ctx context.Context) (*Index, error) {
	data, err := s.bucket.Read(ctx, s.object)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Location(), err)
	}
	return decodeIndex(bytes.NewReader(data), s.Location())
}
