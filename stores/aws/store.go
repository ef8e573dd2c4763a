package aws

import (
	"bytes"
	"canvas-studio/core"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const (
	keyPrefix = "exports"

	metaSession = "session-id"
	metaName    = "name"
)

// S3API is the part of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type s3Store struct {
	s3Client S3API
	bucket   string
}

// NewStore creates a new S3-based store using the default AWS credential
// chain.
func NewStore(ctx context.Context, bucketName string) (*s3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return NewStoreWithClient(s3.NewFromConfig(cfg), bucketName), nil
}

// NewStoreWithClient wraps an existing S3 client.
func NewStoreWithClient(client S3API, bucketName string) *s3Store {
	return &s3Store{s3Client: client, bucket: bucketName}
}

func (s *s3Store) key(id string) (string, error) {
	// Sanitize id to prevent path traversal attacks.
	if id == "" || id == "." || id == ".." || path.Base(id) != id {
		return "", fmt.Errorf("invalid export id %q", id)
	}
	return path.Join(keyPrefix, id), nil
}

func (s *s3Store) Save(ctx context.Context, export *core.Export) (string, error) {
	id := ulid.Make().String()
	key, err := s.key(id)
	if err != nil {
		return "", err
	}
	if export.CreatedAt.IsZero() {
		export.CreatedAt = time.Now()
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(export.Data),
		ContentType: aws.String(export.MIMEType),
		Metadata: map[string]string{
			metaSession: export.SessionID,
			metaName:    export.Name,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}

	export.ID = id
	logrus.WithFields(logrus.Fields{"export_id": id, "bucket": s.bucket, "key": key}).Info("Export saved successfully")
	return id, nil
}

func (s *s3Store) Get(ctx context.Context, id string) (*core.Export, error) {
	key, err := s.key(id)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", id, core.ErrExportNotFound)
	}

	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("export %s: %w", id, core.ErrExportNotFound)
		}
		return nil, fmt.Errorf("failed to get export %s: %w", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read export data: %w", err)
	}

	export := &core.Export{
		ID:        id,
		SessionID: resp.Metadata[metaSession],
		Name:      resp.Metadata[metaName],
		MIMEType:  aws.ToString(resp.ContentType),
		Data:      data,
	}
	if resp.LastModified != nil {
		export.CreatedAt = *resp.LastModified
	}
	return export, nil
}

// List scans every export and keeps the session's own. S3 cannot filter on
// metadata, so each object costs a HEAD request.
func (s *s3Store) List(ctx context.Context, sessionID string) ([]*core.Export, error) {
	output, err := s.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(keyPrefix + "/"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}

	exports := make([]*core.Export, 0)
	for _, object := range output.Contents {
		head, err := s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    object.Key,
		})
		if err != nil {
			logrus.WithError(err).WithField("key", aws.ToString(object.Key)).Warn("Failed to read export metadata, skipping")
			continue
		}
		if head.Metadata[metaSession] != sessionID {
			continue
		}
		export := &core.Export{
			ID:        path.Base(aws.ToString(object.Key)),
			SessionID: sessionID,
			Name:      head.Metadata[metaName],
			MIMEType:  aws.ToString(head.ContentType),
		}
		if object.LastModified != nil {
			export.CreatedAt = *object.LastModified
		}
		exports = append(exports, export)
	}
	return exports, nil
}
