package files_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/thatamjad/cf-ai-amjad/pkg/tool"
	"github.com/thatamjad/cf-ai-amjad/pkg/tool/files"
)

// memStorage is an in-memory Storage for tests
type memStorage struct {
	blobs map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{blobs: map[string][]byte{}}
}

type memWriter struct {
	buf   bytes.Buffer
	key   string
	store *memStorage
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memWriter) Close() error {
	w.store.blobs[w.key] = w.buf.Bytes()
	return nil
}

func (s *memStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	return &memWriter{key: key, store: s}, nil
}

func (s *memStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.blobs[key]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStorage) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for key := range s.blobs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *memStorage) Delete(ctx context.Context, key string) error {
	delete(s.blobs, key)
	return nil
}

func setup(t *testing.T) (*tool.Registry, *memStorage) {
	t.Helper()
	ctx := context.Background()
	storage := newMemStorage()
	client := &tool.Client{Storage: storage}

	registry := tool.New()
	for _, ft := range files.New() {
		enabled, err := ft.Init(ctx, client)
		gt.NoError(t, err)
		gt.True(t, enabled)
		gt.NoError(t, registry.Register(ft))
	}
	return registry, storage
}

func TestSaveAndGet(t *testing.T) {
	registry, _ := setup(t)
	ctx := context.Background()

	saved := registry.Execute(ctx, "files_save", map[string]any{
		"name":    "notes.txt",
		"content": "remember the milk",
	})
	gt.True(t, saved.Success)

	loaded := registry.Execute(ctx, "files_get", map[string]any{"name": "notes.txt"})
	gt.True(t, loaded.Success)

	data, ok := loaded.Data.(map[string]any)
	gt.True(t, ok)
	gt.V(t, data["content"]).Equal("remember the milk")
}

func TestGetMissingFile(t *testing.T) {
	registry, _ := setup(t)

	result := registry.Execute(context.Background(), "files_get", map[string]any{"name": "nope.txt"})
	gt.False(t, result.Success)
	gt.S(t, result.Error).Contains("failed to open file")
}

func TestList(t *testing.T) {
	registry, _ := setup(t)
	ctx := context.Background()

	for _, name := range []string{"a.txt", "b.txt", "report.md"} {
		result := registry.Execute(ctx, "files_save", map[string]any{"name": name, "content": "x"})
		gt.True(t, result.Success)
	}

	listed := registry.Execute(ctx, "files_list", map[string]any{})
	gt.True(t, listed.Success)
	data, ok := listed.Data.(map[string]any)
	gt.True(t, ok)
	gt.V(t, data["count"]).Equal(3)

	filtered := registry.Execute(ctx, "files_list", map[string]any{"prefix": "report"})
	gt.True(t, filtered.Success)
	data, ok = filtered.Data.(map[string]any)
	gt.True(t, ok)
	gt.V(t, data["count"]).Equal(1)
}

func TestSaveRequiresContent(t *testing.T) {
	registry, _ := setup(t)

	result := registry.Execute(context.Background(), "files_save", map[string]any{"name": "x.txt"})
	gt.False(t, result.Success)
	gt.S(t, result.Error).Contains("required")
}
