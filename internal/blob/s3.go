package blob

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// S3Store uploads provisioned documents into long-term object storage.
type S3Store struct {
	client *s3.Client
	bucket string
}

// S3Config holds the bucket coordinates. Endpoint is optional and
// switches the client to path-style addressing (MinIO, LocalStack).
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
}

// NewS3Store creates an S3-backed document store. Credentials come from
// the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.Wrap(err, "NewS3Store: could not load the AWS config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Upload writes the content under the given key. Writing the same key
// twice is an overwrite, which keeps redeliveries idempotent.
func (s *S3Store) Upload(ctx context.Context, key string, content []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return errors.Wrapf(err, "S3Store.Upload: put failed for key %s", key)
	}
	return nil
}
