package sources

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GSSource serves gs://bucket/object locations on Google Cloud Storage
// using application default credentials.
type GSSource struct {
	once    sync.Once
	client  *storage.Client
	initErr error
}

func NewGSSource() *GSSource {
	return &GSSource{}
}

func (s *GSSource) Schemes() []string {
	return []string{"gs"}
}

func (s *GSSource) Get(ctx context.Context, u *url.URL, dst *os.File) error {
	if err := s.init(ctx); err != nil {
		return err
	}

	bucket, object := bucketKey(u)
	if bucket == "" || object == "" {
		return fmt.Errorf("gs location %q needs the form gs://bucket/object", u.String())
	}

	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("open gs object: %w", err)
	}
	defer r.Close()

	_, err = io.Copy(dst, r)
	return err
}

func (s *GSSource) init(ctx context.Context) error {
	s.once.Do(func() {
		client, err := storage.NewClient(ctx, option.WithScopes(storage.ScopeReadOnly))
		if err != nil {
			s.initErr = fmt.Errorf("create gcs client: %w", err)
			return
		}
		s.client = client
	})
	return s.initErr
}
