package knowledge

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used for corpus reads and artifact
// writes.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// AWSConfig loads the SDK config for the S3 source and store. Static keys
// take precedence over the named profile, which falls back to the default
// credential chain.
func AWSConfig(ctx context.Context, opts SourceOptions) (aws.Config, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.AWSProfile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.AWSProfile))
	}
	if opts.AWSRegion != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.AWSRegion))
	}
	if opts.AWSAccessKeyID != "" && opts.AWSSecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AWSAccessKeyID, opts.AWSSecretAccessKey, opts.AWSSessionToken)))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return cfg, nil
}

func newS3Client(ctx context.Context, opts SourceOptions) (*s3.Client, error) {
	cfg, err := AWSConfig(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		// S3-compatible stores (MinIO, R2) need path-style addressing
		if opts.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Source reads corpus documents under s3://bucket/prefix.
type S3Source struct {
	client S3API
	bucket string
	prefix string
}

func NewS3Source(ctx context.Context, bucket, prefix string, opts SourceOptions) (*S3Source, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 source requires a bucket")
	}
	client, err := newS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	return NewS3SourceWithClient(client, bucket, prefix), nil
}

func NewS3SourceWithClient(client S3API, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Source) Location() string {
	return "s3://" + s.bucket + "/" + s.prefix
}

func (s *S3Source) List(ctx context.Context) ([]DocumentRef, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix + "/")
	}

	var refs []DocumentRef
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", s.Location(), err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") || !Supported(key) {
				continue
			}
			rel := strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/")
			refs = append(refs, DocumentRef{Path: rel, Key: key})
		}
	}
	sortRefs(refs)
	return refs, nil
}

func (s *S3Source) Read(ctx context.Context, ref DocumentRef) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, ref.Key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
