// Package mirror copies a shipped archive to S3 or S3-compatible storage.
package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pithecene-io/shipyard/log"
	"github.com/pithecene-io/shipyard/storage"
)

// ContentType is the content type set on mirrored archives.
const ContentType = "application/zip"

// PutObjectAPI is the subset of the S3 client used by the mirror.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Mirror uploads archives under <prefix>/<game>/<version>/<basename>.
type Mirror struct {
	client PutObjectAPI
	cfg    storage.S3Config
	game   string
	logger *log.Logger
}

// New builds a Mirror around an existing S3 client.
func New(client PutObjectAPI, cfg storage.S3Config, game string, logger *log.Logger) (*Mirror, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("mirror: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("mirror: S3 client is required")
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Mirror{client: client, cfg: cfg, game: game, logger: logger}, nil
}

// NewS3 builds a Mirror with a client from the AWS default credential chain.
func NewS3(ctx context.Context, cfg storage.S3Config, game string, logger *log.Logger) (*Mirror, error) {
	client, err := storage.NewS3Client(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("mirror: %w", err)
	}
	return New(client, cfg, game, logger)
}

// Key returns the object key an archive for version is stored under.
func (m *Mirror) Key(path, version string) string {
	return m.cfg.Key(m.game, version, filepath.Base(path))
}

// Mirror uploads the archive at path and returns its s3:// URI.
func (m *Mirror) Mirror(ctx context.Context, path, version string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat archive: %w", err)
	}

	key := m.Key(path, version)
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(ContentType),
		Metadata: map[string]string{
			"game":    m.game,
			"version": version,
		},
	})
	if err != nil {
		return "", storage.WrapWriteError(err, m.cfg.Bucket+"/"+key)
	}

	uri := fmt.Sprintf("s3://%s/%s", m.cfg.Bucket, key)
	m.logger.Info("archive mirrored", map[string]any{
		"uri":   uri,
		"bytes": info.Size(),
	})
	return uri, nil
}
