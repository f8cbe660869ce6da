package knowledge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleIndex() *Index {
	return BuildIndex([]SourceText{
		{Path: "a.md", Title: "A", Text: "refund policy for annual plans"},
		{Path: "b.md", Title: "B", Text: "rotate the api keys monthly"},
	}, DefaultChunker(), DefaultTokenizer())
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "localrag.json")
	store := NewFileStore(path)
	idx := sampleIndex()

	require.NoError(t, store.Save(context.Background(), idx))
	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, idx, loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStoreArtifactMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}
	path := filepath.Join(t.TempDir(), "localrag.json")
	require.NoError(t, NewFileStore(path).Save(context.Background(), sampleIndex()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestFileStoreWireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "localrag.json")
	require.NoError(t, NewFileStore(path).Save(context.Background(), sampleIndex()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, key := range []string{`"totalChunks":2`, `"idf":`, `"docs":`, `"chunks":`, `"tf":`, `"text":`} {
		assert.Contains(t, string(data), key)
	}
}

func TestFileStoreRejectsInvalidIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "localrag.json")
	idx := sampleIndex()
	idx.TotalChunks = 99

	require.Error(t, NewFileStore(path).Save(context.Background(), idx))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "localrag.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"totalChunks":3,"idf":{},"docs":[]}`), 0o644))

	_, err := NewFileStore(path).Load(context.Background())
	assert.ErrorContains(t, err, "corrupt")
}

func TestNewFileStoreDefaultPath(t *testing.T) {
	assert.Equal(t, DefaultArtifactPath, NewFileStore("").Location())
}

// fakeS3 is an in-memory bucket implementing S3API.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int
}

func newFakeS3(objects map[string]string) *fakeS3 {
	f := &fakeS3{objects: map[string][]byte{}, pageSize: 2}
	for k, v := range objects {
		f.objects[k] = []byte(v)
	}
	return f
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		fmt.Sscanf(tok, "%d", &start)
	}
	end := min(start+f.pageSize, len(keys))

	out := &s3.ListObjectsV2Output{}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(fmt.Sprint(end))
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("not found")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func TestS3SourceListsAcrossPages(t *testing.T) {
	client := newFakeS3(map[string]string{
		"kb/intro.md":        "welcome",
		"kb/faq/billing.txt": "refunds",
		"kb/faq/":            "",
		"kb/image.png":       "png",
		"kb/z-manual.md":     "manual",
		"other/readme.md":    "outside prefix",
	})
	src := NewS3SourceWithClient(client, "docs", "/kb/")
	assert.Equal(t, "s3://docs/kb", src.Location())

	refs, err := src.List(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, "faq/billing.txt", refs[0].Path)
	assert.Equal(t, "kb/faq/billing.txt", refs[0].Key)
	assert.Equal(t, "intro.md", refs[1].Path)
	assert.Equal(t, "z-manual.md", refs[2].Path)

	data, err := src.Read(context.Background(), refs[1])
	require.NoError(t, err)
	assert.Equal(t, "welcome", string(data))
}

func TestS3StoreRoundTrip(t *testing.T) {
	client := newFakeS3(nil)
	store := NewS3Store(client, "artifacts", "rag/localrag.json")
	assert.Equal(t, "s3://artifacts/rag/localrag.json", store.Location())

	idx := sampleIndex()
	require.NoError(t, store.Save(context.Background(), idx))
	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, idx, loaded)
}

func TestS3StoreLoadMissing(t *testing.T) {
	_, err := NewS3Store(newFakeS3(nil), "artifacts", "missing.json").Load(context.Background())
	assert.Error(t, err)
}

// fakeBucket is an in-memory objectBucket.
type fakeBucket struct {
	name    string
	objects map[string][]byte
}

func (b *fakeBucket) Name() string { return b.name }

func (b *fakeBucket) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			names = append(names, k)
		}
	}
	return names, nil
}

func (b *fakeBucket) Read(_ context.Context, name string) ([]byte, error) {
	data, ok := b.objects[name]
	if !ok {
		return nil, fmt.Errorf("object %s not found", name)
	}
	return data, nil
}

func (b *fakeBucket) Write(_ context.Context, name, _ string, data []byte) error {
	b.objects[name] = append([]byte(nil), data...)
	return nil
}

func TestGCSSourceAndStore(t *testing.T) {
	bucket := &fakeBucket{name: "corpus", objects: map[string][]byte{
		"kb/b.md":      []byte("bravo"),
		"kb/a.txt":     []byte("alpha"),
		"kb/notes.doc": []byte("unsupported"),
	}}

	src := &GCSSource{bucket: bucket, prefix: "kb"}
	assert.Equal(t, "gs://corpus/kb", src.Location())

	ix := NewIndexer(src, IndexerOptions{})
	store := &GCSStore{bucket: bucket, object: "out/localrag.json"}
	idx, err := ix.Run(context.Background(), store)
	require.NoError(t, err)

	require.Len(t, idx.Docs, 2)
	assert.Equal(t, "a.txt", idx.Docs[0].Path)
	assert.Equal(t, "b.md", idx.Docs[1].Path)

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, idx, loaded)
	assert.Equal(t, "gs://corpus/out/localrag.json", store.Location())
}

func TestSplitBucketURI(t *testing.T) {
	bucket, prefix := splitBucketURI("docs/kb/guides/")
	assert.Equal(t, "docs", bucket)
	assert.Equal(t, "kb/guides", prefix)

	bucket, prefix = splitBucketURI("docs")
	assert.Equal(t, "docs", bucket)
	assert.Empty(t, prefix)
}

func TestOpenStoreRejectsBareBucket(t *testing.T) {
	_, err := OpenStore(context.Background(), "s3://bucket-only", SourceOptions{})
	assert.Error(t, err)
	_, err = OpenStore(context.Background(), "gs://bucket-only", SourceOptions{})
	assert.Error(t, err)
}
