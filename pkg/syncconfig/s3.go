package syncconfig

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/vango-dev/deeplink/internal/errors"
)

// ObjectGetter is the part of *s3.Client the S3 source needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source serves a YAML route table stored as an S3 object. The object is
// fetched on first use and cached until Invalidate is called.
//
// Example usage:
//
//	client := s3.New(s3.Options{Region: "eu-west-1", Credentials: creds})
//	src := syncconfig.NewS3Source(client, "my-bucket", "routes/deeplink.yaml")
type S3Source struct {
	client ObjectGetter
	bucket string
	key    string

	mu    sync.Mutex
	table *RouteTable
}

// NewS3Source creates a source reading bucket/key through client.
func NewS3Source(client ObjectGetter, bucket, key string) *S3Source {
	return &S3Source{client: client, bucket: bucket, key: key}
}

// Load returns the cached route table, fetching it if needed.
func (s *S3Source) Load(ctx context.Context) (*RouteTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.table != nil {
		return s.table, nil
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, errors.New(errors.CodeSourceFailed).
			WithDetail("Could not fetch s3://" + s.bucket + "/" + s.key + ".").
			Wrap(err)
	}
	defer out.Body.Close()

	table, err := ReadYAML(out.Body)
	if err != nil {
		return nil, err
	}
	s.table = table
	return table, nil
}

// Invalidate drops the cached table so the next Resolve fetches it again.
func (s *S3Source) Invalidate() {
	s.mu.Lock()
	s.table = nil
	s.mu.Unlock()
}

// Resolve implements Source.
func (s *S3Source) Resolve(ctx context.Context, pattern string) (*Config, error) {
	table, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return table.Resolve(ctx, pattern)
}
