package adapter

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

// Storage is the blob store collaborator, used by file-oriented tools and
// generated-artifact persistence. Not consumed by the agent core itself.
type Storage interface {
	// Put returns a writer to save a blob under the key
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	// Get loads a blob by key
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns the keys under the given prefix
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes a blob by key
	Delete(ctx context.Context, key string) error
}

// storageClient implements Storage using Cloud Storage
type storageClient struct {
	bucketName string
	client     *storage.Client
}

// NewStorage creates a new Cloud Storage client
func NewStorage(ctx context.Context, bucketName string) (Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &storageClient{
		bucketName: bucketName,
		client:     client,
	}, nil
}

func (s *storageClient) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	bucket := s.client.Bucket(s.bucketName)
	obj := bucket.Object(key)
	writer := obj.NewWriter(ctx)
	return writer, nil
}

func (s *storageClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	bucket := s.client.Bucket(s.bucketName)
	obj := bucket.Object(key)
	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.Value("key", key))
	}

	return reader, nil
}

func (s *storageClient) List(ctx context.Context, prefix string) ([]string, error) {
	bucket := s.client.Bucket(s.bucketName)
	it := bucket.Objects(ctx, &storage.Query{Prefix: prefix})

	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list storage objects", goerr.Value("prefix", prefix))
		}
		keys = append(keys, attrs.Name)
	}

	return keys, nil
}

func (s *storageClient) Delete(ctx context.Context, key string) error {
	bucket := s.client.Bucket(s.bucketName)
	if err := bucket.Object(key).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete storage object", goerr.Value("key", key))
	}
	return nil
}
