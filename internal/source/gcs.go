package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSSource reads the roster from a Cloud Storage object.
type GCSSource struct {
	client *storage.Client
	bucket string
	object string
}

// NewGCSSource builds a client from credentialsJSON, falling back to
// Application Default Credentials when it is empty.
func NewGCSSource(ctx context.Context, bucket, object, credentialsJSON string) (*GCSSource, error) {
	if bucket == "" || object == "" {
		return nil, errors.New("gcs source needs both bucket and object")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSSource{client: client, bucket: bucket, object: object}, nil
}

func (s *GCSSource) Name() string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.object)
}

func (s *GCSSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRosterMissing, s.Name())
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Name(), err)
	}
	return r, nil
}

func (s *GCSSource) Close() error {
	return s.client.Close()
}
