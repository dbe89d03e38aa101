package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"chemlit-extractor/config"
)

// S3Mirror copies downloaded article files into an S3 compatible bucket.
// It satisfies the downloader's Mirror interface.
type S3Mirror struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

// NewS3Mirror builds an S3 client against a custom endpoint, e.g. a Strato
// HiDrive or MinIO installation.
func NewS3Mirror(cfg *config.Config, logger *zap.Logger) (*S3Mirror, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.S3URL,
				SigningRegion:     cfg.S3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3Key, cfg.S3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return &S3Mirror{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3Bucket,
		logger: logger,
	}, nil
}

// UploadFile streams a local file into the bucket under the given key.
func (m *S3Mirror) UploadFile(localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = m.client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket: &m.bucket,
		Key:    &key,
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	m.logger.Debug("File mirrored to S3",
		zap.String("bucket", m.bucket),
		zap.String("key", key))
	return nil
}
