package engine

import (
	"github.com/weathertiles/core/internal/cache"
	"github.com/weathertiles/core/internal/catalog"
	"github.com/weathertiles/core/internal/grid"
	"github.com/weathertiles/core/internal/render"
)

// LayerConfig binds a render-request LayerID to the catalog query that
// resolves its data and, for wind-barb styles, the catalog parameter
// carrying the second (v) vector component.
type LayerConfig struct {
	Model              string
	Parameter          string
	Level              string
	SecondaryParameter string // v-component parameter, wind-barb layers only
}

// Config is the engine's full tuning surface, mapstructure-tagged so it can
// be populated straight from a Viper config tree (env prefix WEATHERTILES_,
// keys identical to spec.md §6).
type Config struct {
	TileCacheSizeMB  int64 `mapstructure:"tile_cache_size_mb"`
	TileCacheTTLSecs int   `mapstructure:"tile_cache_ttl_secs"`
	ChunkCacheSizeMB int64 `mapstructure:"chunk_cache_size_mb"`

	MemoryLimitMB           int64   `mapstructure:"memory_limit_mb"`
	MemoryPressureThreshold float64 `mapstructure:"memory_pressure_threshold"`
	MemoryPressureTarget    float64 `mapstructure:"memory_pressure_target"`

	EnablePrefetch  bool    `mapstructure:"enable_prefetch"`
	PrefetchRings   int     `mapstructure:"prefetch_rings"`
	PrefetchMinZoom uint32  `mapstructure:"prefetch_min_zoom"`
	PrefetchMaxZoom uint32  `mapstructure:"prefetch_max_zoom"`
	PrefetchRateHz  float64 `mapstructure:"prefetch_rate_hz"`
	PrefetchWorkers int     `mapstructure:"prefetch_workers"`

	EnableCacheWarming      bool          `mapstructure:"enable_cache_warming"`
	CacheWarmingMaxZoom     uint32        `mapstructure:"cache_warming_max_zoom"`
	CacheWarmingLayers      []LayerStyle  `mapstructure:"cache_warming_layers"`
	CacheWarmingConcurrency int           `mapstructure:"cache_warming_concurrency"`

	ProjectionLUTDir     string `mapstructure:"projection_lut_dir"`
	EnableProjectionLUT  bool   `mapstructure:"enable_projection_lut"`

	BuildDeadlineSecs      int `mapstructure:"build_deadline_secs"`
	L2OpTimeoutMS          int `mapstructure:"l2_op_timeout_ms"`
	ObjectStoreOpTimeoutMS int `mapstructure:"object_store_op_timeout_ms"`

	TileSize int `mapstructure:"tile_size_pixels"`

	Layers  map[string]LayerConfig   `mapstructure:"-"`
	Styles  map[string]render.Style `mapstructure:"-"`
	Catalog catalog.Catalog         `mapstructure:"-"`
	Store   grid.ObjectStore        `mapstructure:"-"`
	// Shared is the optional L2 cache (cache.RedisShared in production,
	// backed by go-redis/v9). Nil means single-node: L1 + L3 only.
	Shared cache.Shared `mapstructure:"-"`
}

// LayerStyle names one (layer, style) pair the cache warmer enumerates tiles
// for. Redeclared here (rather than imported from internal/prefetch) to keep
// Config free of a dependency a caller populating it by hand shouldn't need.
type LayerStyle struct {
	LayerID         string `mapstructure:"layer_id"`
	StyleID         string `mapstructure:"style_id"`
	TileMatrixSetID string `mapstructure:"tile_matrix_set_id"`
}

// DefaultConfig returns the spec.md §6 defaults. Layers, Styles, Catalog and
// Store are left unset; the caller must supply them before Init.
func DefaultConfig() Config {
	return Config{
		TileCacheSizeMB:         8192,
		TileCacheTTLSecs:        600,
		ChunkCacheSizeMB:        8192,
		MemoryLimitMB:           28000,
		MemoryPressureThreshold: 0.80,
		MemoryPressureTarget:    0.70,
		EnablePrefetch:          true,
		PrefetchRings:           2,
		PrefetchMinZoom:         3,
		PrefetchMaxZoom:         12,
		PrefetchRateHz:          50,
		PrefetchWorkers:         4,
		EnableCacheWarming:      true,
		CacheWarmingMaxZoom:     4,
		CacheWarmingConcurrency: 8,
		EnableProjectionLUT:     false,
		BuildDeadlineSecs:       60,
		L2OpTimeoutMS:           500,
		ObjectStoreOpTimeoutMS:  2000,
		TileSize:                256,
	}
}
