// Package export publishes refreshed snapshot sets to S3-compatible object
// storage for downstream consumers.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/pollwise/acdash/internal/model"
)

// ObjectClient is the subset of the S3 client used by the exporter.
type ObjectClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter writes the full snapshot set as JSON objects: a stable
// latest.json that is overwritten every export, plus a timestamped copy for
// history.
type S3Exporter struct {
	client ObjectClient
	bucket string
	prefix string
	logger zerolog.Logger

	now func() time.Time
}

type Config struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
}

// NewS3Exporter creates an exporter against an S3-compatible endpoint.
func NewS3Exporter(cfg Config, logger zerolog.Logger) *S3Exporter {
	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(cfg.Endpoint),
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	})
	return newS3Exporter(client, cfg, logger)
}

func newS3Exporter(client ObjectClient, cfg Config, logger zerolog.Logger) *S3Exporter {
	return &S3Exporter{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger.With().Str("component", "s3-exporter").Logger(),
		now:    time.Now,
	}
}

// Export uploads the snapshot set. The timestamped copy is written first so
// latest.json never points at an export that failed halfway.
func (e *S3Exporter) Export(ctx context.Context, snaps []model.Snapshot) error {
	body, err := json.Marshal(snaps)
	if err != nil {
		return fmt.Errorf("marshal snapshot set: %w", err)
	}

	stamp := e.now().UTC().Format("20060102T150405Z")
	if err := e.put(ctx, e.key(stamp+".json"), body); err != nil {
		return err
	}
	if err := e.put(ctx, e.key("latest.json"), body); err != nil {
		return err
	}

	e.logger.Info().Int("snapshots", len(snaps)).Str("bucket", e.bucket).Msg("snapshot set uploaded")
	return nil
}

func (e *S3Exporter) key(name string) string {
	if e.prefix == "" {
		return name
	}
	return e.prefix + "/" + name
}

func (e *S3Exporter) put(ctx context.Context, key string, body []byte) error {
	_, err := e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}
