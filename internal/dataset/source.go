package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Driver selects a Source implementation.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

// Config selects and configures a Source.
type Config struct {
	Driver Driver
	Dir    string

	S3Bucket    string
	S3Prefix    string
	S3Region    string
	S3Endpoint  string // optional, for MinIO and other S3-compatible stores
	S3PathStyle bool
}

// NewSource builds the Source described by cfg.
func NewSource(ctx context.Context, cfg Config) (Source, error) {
	switch cfg.Driver {
	case DriverFilesystem, "":
		return FSSource{Dir: cfg.Dir}, nil
	case DriverS3:
		return NewS3Source(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown dataset driver %s", cfg.Driver)
	}
}

// FSSource reads resources from a directory.
type FSSource struct {
	Dir string
}

// Open opens the named resource inside Dir.
func (s FSSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	return os.Open(s.Location(name))
}

// Location is the resource path, for logs and errors.
func (s FSSource) Location(name string) string {
	return filepath.Join(s.Dir, name)
}

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads resources from a bucket, under an optional key prefix.
type S3Source struct {
	Client S3API
	Bucket string
	Prefix string
}

// NewS3Source creates an S3 client from the default credential chain.
func NewS3Source(ctx context.Context, cfg Config) (*S3Source, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.S3Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3PathStyle {
			o.UsePathStyle = true
		}
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
	})
	return &S3Source{Client: client, Bucket: cfg.S3Bucket, Prefix: cfg.S3Prefix}, nil
}

// Open streams the object stored under the prefixed key.
func (s *S3Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// Location is the s3:// URL of the resource.
func (s *S3Source) Location(name string) string {
	return "s3://" + s.Bucket + "/" + s.key(name)
}

func (s *S3Source) key(name string) string {
	if s.Prefix == "" {
		return name
	}
	return path.Join(s.Prefix, name)
}
