package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// objectBucket is the narrow view of a GCS bucket the source and store use.
type objectBucket interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name, contentType string, data []byte) error
	Name() string
}

type gcsBucket struct {
	handle *storage.BucketHandle
	name   string
}

func newGCSBucket(ctx context.Context, bucket, credentialsFile string) (*gcsBucket, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &gcsBucket{handle: client.Bucket(bucket), name: bucket}, nil
}

func (b *gcsBucket) Name() string { return b.name }

func (b *gcsBucket) List(ctx context.Context, prefix string) ([]string, error) {
	it := b.handle.Objects(ctx, &storage.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

func (b *gcsBucket) Read(ctx context.Context, name string) ([]byte, error) {
	r, err := b.handle.Object(name).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Write uploads data in one object write; readers see either the old or the
// new object once Close succeeds.
func (b *gcsBucket) Write(ctx context.Context, name, contentType string, data []byte) error {
	w := b.handle.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// GCSSource reads corpus documents under gs://bucket/prefix.
type GCSSource struct {
	bucket objectBucket
	prefix string
}

func NewGCSSource(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSSource, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs source requires a bucket")
	}
	b, err := newGCSBucket(ctx, bucket, credentialsFile)
	if err != nil {
		return nil, err
	}
	return &GCSSource{bucket: b, prefix: strings.Trim(prefix, "/")}, nil
}

func (s *GCSSource) Location() string {
	return "gs://" + s.bucket.Name() + "/" + s.prefix
}

func (s *GCSSource) List(ctx context.Context) ([]DocumentRef, error) {
	prefix := s.prefix
	if prefix != "" {
		prefix += "/"
	}
	names, err := s.bucket.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.Location(), err)
	}
	var refs []DocumentRef
	for _, name := range names {
		if strings.HasSuffix(name, "/") || !Supported(name) {
			continue
		}
		refs = append(refs, DocumentRef{Path: strings.TrimPrefix(name, prefix), Key: name})
	}
	sortRefs(refs)
	return refs, nil
}

func (s *GCSSource) Read(ctx context.Context, ref DocumentRef) ([]byte, error) {
	data, err := s.bucket.Read(ctx, ref.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", s.bucket.Name(), ref.Key, err)
	}
	return data, nil
}
