package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultSourceRoot is the corpus location used when none is configured.
const DefaultSourceRoot = "data/knowledge"

// DocumentRef identifies one document inside a Source. Path is slash
// separated and relative to the source root.
type DocumentRef struct {
	Path string
	Key  string
}

// Source enumerates and reads corpus documents.
type Source interface {
	List(ctx context.Context) ([]DocumentRef, error)
	Read(ctx context.Context, ref DocumentRef) ([]byte, error)
	Location() string
}

var supportedExts = []string{".md", ".markdown", ".txt", ".pdf"}

// Supported reports whether the file extension is indexable.
func Supported(name string) bool {
	return slices.Contains(supportedExts, strings.ToLower(path.Ext(name)))
}

// IsPDF reports whether the document needs the text extractor.
func IsPDF(name string) bool {
	return strings.EqualFold(path.Ext(name), ".pdf")
}

// TitleFor derives a display title from a document path:
// "guides/getting-started.md" -> "Getting Started".
func TitleFor(p string) string {
	base := path.Base(filepath.ToSlash(p))
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return p
	}
	return cases.Title(language.English).String(base)
}

// SourceOptions carries credentials for remote sources and stores.
type SourceOptions struct {
	GitHubToken    string
	GCSCredentials string

	AWSProfile         string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
	// S3Endpoint points the S3 client at an S3-compatible service.
	S3Endpoint string
}

// OpenSource picks a Source implementation by URI scheme: s3://, gs://,
// github:// or a local directory.
func OpenSource(ctx context.Context, uri string, opts SourceOptions) (Source, error) {
	switch {
	case strings.HasPrefix(uri, "s3://"):
		bucket, prefix := splitBucketURI(strings.TrimPrefix(uri, "s3://"))
		return NewS3Source(ctx, bucket, prefix, opts)
	case strings.HasPrefix(uri, "gs://"):
		bucket, prefix := splitBucketURI(strings.TrimPrefix(uri, "gs://"))
		return NewGCSSource(ctx, bucket, prefix, opts.GCSCredentials)
	case strings.HasPrefix(uri, "github://"):
		return NewGitHubSource(ctx, strings.TrimPrefix(uri, "github://"), opts.GitHubToken)
	default:
		return NewLocalSource(uri)
	}
}

func splitBucketURI(rest string) (bucket, prefix string) {
	bucket, prefix, _ = strings.Cut(rest, "/")
	return bucket, strings.Trim(prefix, "/")
}

// LocalSource walks a directory tree.
type LocalSource struct {
	root string
}

func NewLocalSource(root string) (*LocalSource, error) {
	if strings.TrimSpace(root) == "" {
		root = DefaultSourceRoot
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("knowledge root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("knowledge root %s is not a directory", root)
	}
	return &LocalSource{root: root}, nil
}

func (s *LocalSource) Location() string { return s.root }

func (s *LocalSource) List(ctx context.Context) ([]DocumentRef, error) {
	var refs []DocumentRef
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != s.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !Supported(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		refs = append(refs, DocumentRef{Path: filepath.ToSlash(rel), Key: p})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", s.root, err)
	}
	sortRefs(refs)
	return refs, nil
}

func (s *LocalSource) Read(_ context.Context, ref DocumentRef) ([]byte, error) {
	return os.ReadFile(ref.Key)
}

func sortRefs(refs []DocumentRef) {
	slices.SortFunc(refs, func(a, b DocumentRef) int {
		return strings.Compare(a.Path, b.Path)
	})
}
