package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/weathertiles/core/internal/cache"
	"github.com/weathertiles/core/internal/catalog"
	"github.com/weathertiles/core/internal/engine"
	"github.com/weathertiles/core/internal/grid"
)

// referenceLayers is the layer catalog shipped with this binary, matching
// defaultStyles below. Production deployments generate both from their own
// model/parameter inventory rather than this fixed reference set.
func referenceLayers() map[string]engine.LayerConfig {
	return map[string]engine.LayerConfig{
		"gfs_t2m":   {Model: "gfs", Parameter: "t2m", Level: "surface"},
		"gfs_precip": {Model: "gfs", Parameter: "apcp", Level: "surface"},
		"gfs_mslp":  {Model: "gfs", Parameter: "mslp", Level: "surface"},
		"gfs_wind10m": {
			Model: "gfs", Parameter: "u10", Level: "surface",
			SecondaryParameter: "v10",
		},
	}
}

// buildEngine assembles an engine.Config from Viper-bound flags/config keys
// and calls engine.Init. Shared by serve, warm, and export.
func buildEngine(ctx context.Context, logger *slog.Logger) (*engine.Engine, error) {
	cfg := engine.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse engine config: %w", err)
	}
	cfg.Layers = referenceLayers()
	cfg.Styles = defaultStyles()

	cat, err := buildCatalog()
	if err != nil {
		return nil, err
	}
	cfg.Catalog = cat

	store, err := buildObjectStore(ctx)
	if err != nil {
		return nil, err
	}
	cfg.Store = store

	if addr := viper.GetString("redis_addr"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		cfg.Shared = cache.NewRedisShared(client, "weathertiles:", time.Duration(cfg.L2OpTimeoutMS)*time.Millisecond)
	}

	return engine.Init(cfg, logger)
}

func buildCatalog() (catalog.Catalog, error) {
	manifestPath := viper.GetString("catalog_manifest")
	if manifestPath == "" {
		return catalog.NewStaticCatalog(nil), nil
	}
	descriptors, err := catalog.LoadManifest(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog manifest: %w", err)
	}
	return catalog.NewStaticCatalog(descriptors), nil
}

func buildObjectStore(ctx context.Context) (grid.ObjectStore, error) {
	opTimeout := time.Duration(viper.GetInt("object_store_op_timeout_ms")) * time.Millisecond

	switch viper.GetString("object_store") {
	case "", "fs":
		return grid.NewFSStore(viper.GetString("object_store_root")), nil
	case "s3":
		bucket := viper.GetString("s3_bucket")
		if bucket == "" {
			return nil, fmt.Errorf("--s3-bucket is required when --object-store=s3")
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		return grid.NewS3Store(client, bucket, opTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported object store %q", viper.GetString("object_store"))
	}
}
