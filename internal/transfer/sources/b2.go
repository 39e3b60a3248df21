package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sync"

	"github.com/Backblaze/blazer/b2"
)

// B2Source serves b2://bucket/object locations on Backblaze B2. The
// account credentials come from the agent's environment.
type B2Source struct {
	AccountID string
	AppKey    string

	once    sync.Once
	client  *b2.Client
	initErr error
}

func NewB2Source(accountID, appKey string) *B2Source {
	return &B2Source{AccountID: accountID, AppKey: appKey}
}

func (s *B2Source) Schemes() []string {
	return []string{"b2"}
}

func (s *B2Source) Get(ctx context.Context, u *url.URL, dst *os.File) error {
	if err := s.init(ctx); err != nil {
		return err
	}

	bucketName, object := bucketKey(u)
	if bucketName == "" || object == "" {
		return fmt.Errorf("b2 location %q needs the form b2://bucket/object", u.String())
	}

	bucket, err := s.client.Bucket(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("open b2 bucket: %w", err)
	}

	r := bucket.Object(object).NewReader(ctx)
	defer r.Close()

	_, err = io.Copy(dst, r)
	return err
}

func (s *B2Source) init(ctx context.Context) error {
	s.once.Do(func() {
		if s.AccountID == "" || s.AppKey == "" {
			s.initErr = errors.New("b2 credentials not configured")
			return
		}
		client, err := b2.NewClient(ctx, s.AccountID, s.AppKey)
		if err != nil {
			s.initErr = fmt.Errorf("create b2 client: %w", err)
			return
		}
		s.client = client
	})
	return s.initErr
}
