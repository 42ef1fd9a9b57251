package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/danielolaszy/relnotes/internal/logging"
)

// ObjectPutter is the part of the S3 API used by S3Sink.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink writes dumps to an S3 bucket.
type S3Sink struct {
	Client  ObjectPutter
	Bucket  string
	Prefix  string
	Formats []Format
}

// NewS3Sink loads the default AWS configuration for region.
func NewS3Sink(ctx context.Context, bucket, prefix, region string, formats []Format) (*S3Sink, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return &S3Sink{
		Client:  s3.NewFromConfig(cfg),
		Bucket:  bucket,
		Prefix:  prefix,
		Formats: formats,
	}, nil
}

var contentTypes = map[Format]string{
	FormatJSON:     "application/json",
	FormatMarkdown: "text/markdown; charset=utf-8",
}

// Save puts one object per format.
func (s *S3Sink) Save(ctx context.Context, d Dump) ([]string, error) {
	var written []string
	for _, f := range s.Formats {
		data, err := Encode(d, f)
		if err != nil {
			return written, err
		}

		key := path.Join(s.Prefix, ObjectName(d, f))
		_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentTypes[f]),
		})
		if err != nil {
			return written, fmt.Errorf("failed to put s3://%s/%s: %w", s.Bucket, key, err)
		}

		location := fmt.Sprintf("s3://%s/%s", s.Bucket, key)
		logging.Info("saved issues to s3", "location", location, "issues", len(d.Issues))
		written = append(written, location)
	}
	return written, nil
}
