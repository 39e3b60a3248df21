package sources

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Source serves s3://bucket/key locations. Credentials come from the
// default AWS chain unless static keys are supplied.
type S3Source struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string

	once       sync.Once
	downloader *manager.Downloader
	initErr    error
}

func NewS3Source() *S3Source {
	return &S3Source{}
}

// NewS3SourceStatic builds a source with fixed credentials, for repos
// that hand out scoped download keys.
func NewS3SourceStatic(accessKeyID, secretAccessKey, region string) *S3Source {
	return &S3Source{AccessKeyID: accessKeyID, SecretAccessKey: secretAccessKey, Region: region}
}

func (s *S3Source) Schemes() []string {
	return []string{"s3"}
}

func (s *S3Source) Get(ctx context.Context, u *url.URL, dst *os.File) error {
	if err := s.init(ctx); err != nil {
		return err
	}

	bucket, key := bucketKey(u)
	if bucket == "" || key == "" {
		return fmt.Errorf("s3 location %q needs the form s3://bucket/key", u.String())
	}

	_, err := s.downloader.Download(ctx, dst, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *S3Source) init(ctx context.Context) error {
	s.once.Do(func() {
		var opts []func(*awsconfig.LoadOptions) error
		if s.Region != "" {
			opts = append(opts, awsconfig.WithRegion(s.Region))
		}
		if s.AccessKeyID != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, "")))
		}

		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			s.initErr = fmt.Errorf("load aws config: %w", err)
			return
		}
		s.downloader = manager.NewDownloader(s3.NewFromConfig(cfg))
	})
	return s.initErr
}

// bucketKey splits an object URL into bucket and key.
func bucketKey(u *url.URL) (string, string) {
	return u.Host, strings.TrimPrefix(u.Path, "/")
}
