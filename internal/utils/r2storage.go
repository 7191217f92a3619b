package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2Storage gives reviewers short-lived links to coach documents stored on
// Cloudflare R2. Uploads happen outside this service.
type R2Storage struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	bucketName string
}

// NewR2Storage creates an R2Storage client.
// endpoint should be "https://<account-id>.r2.cloudflarestorage.com".
func NewR2Storage(accessKeyID, secretAccessKey, endpoint, bucketName string) *R2Storage {
	cfg := aws.Config{
		Region: "auto",
		Credentials: credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"",
		),
		BaseEndpoint: aws.String(endpoint),
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// R2 requires path-style addressing
		o.UsePathStyle = true
	})

	return &R2Storage{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		bucketName: bucketName,
	}
}

// PresignGetObject generates a presigned GET URL valid for ttl.
func (rs *R2Storage) PresignGetObject(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	req, err := rs.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(rs.bucketName),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign document URL: %w", err)
	}
	return req.URL, nil
}

// Ping checks that the bucket is reachable with the configured credentials.
func (rs *R2Storage) Ping(ctx context.Context) error {
	_, err := rs.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(rs.bucketName)})
	if err != nil {
		return fmt.Errorf("r2 bucket unreachable: %w", err)
	}
	return nil
}
