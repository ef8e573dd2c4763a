package stores

import (
	"canvas-studio/config"
	"canvas-studio/core"
	"canvas-studio/stores/aws"
	"canvas-studio/stores/filesystem"
	"canvas-studio/stores/memory"
	"canvas-studio/stores/sqlite"
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// New builds the export store selected by cfg.Type. Unknown or empty types
// fall back to memory.
func New(ctx context.Context, cfg config.Storage) (core.ExportStore, error) {
	storageField := logrus.Fields{
		"storageType": cfg.Type,
	}

	var store core.ExportStore
	switch cfg.Type {
	case "filesystem":
		storageField["basePath"] = cfg.LocalPath
		store = filesystem.NewStore(cfg.LocalPath)
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		s, err := sqlite.NewStore(cfg.DataSourceName)
		if err != nil {
			return nil, err
		}
		store = s
	case "s3":
		if cfg.BucketName == "" {
			return nil, fmt.Errorf("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = cfg.BucketName
		s, err := aws.NewStore(ctx, cfg.BucketName)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}

func GetStore(cfg config.Storage) core.ExportStore {
	store, err := New(context.Background(), cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialise export storage")
	}
	return store
}
