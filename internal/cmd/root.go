package cmd

import (
	"fmt"
	"os"
	"strings"

	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var logger *slog.Logger

var rootCmd = &cobra.Command{
	Use:   "tileserver",
	Short: "Weather map tile render-path core",
	Long: `tileserver renders weather map tiles on demand from gridded forecast
data: it resolves a layer/style/time request against a dataset catalog,
reads the overlapping chunks of the source grid, resamples them into tile
space, and rasterizes the result as a PNG — behind a tiered cache and a
single-flight build coordinator so concurrent requests for the same tile
never duplicate work.`,
}

func Execute() {
	if logger == nil {
		initLogging() // fallback in case cobra init didn't fire
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.PersistentFlags().String("catalog-manifest", "", "Path to the catalog's JSON dataset manifest")
	rootCmd.PersistentFlags().String("object-store", "fs", "Chunk object store backend (fs, s3)")
	rootCmd.PersistentFlags().String("object-store-root", "./data", "Root directory for the fs object store")
	rootCmd.PersistentFlags().String("s3-bucket", "", "S3 bucket for the s3 object store")
	rootCmd.PersistentFlags().String("redis-addr", "", "Redis address for the shared L2 cache (empty disables L2)")

	mustBindPersistent := func(key, name string) {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBindPersistent("verbose", "verbose")
	mustBindPersistent("log-level", "log-level")
	mustBindPersistent("catalog_manifest", "catalog-manifest")
	mustBindPersistent("object_store", "object-store")
	mustBindPersistent("object_store_root", "object-store-root")
	mustBindPersistent("s3_bucket", "s3-bucket")
	mustBindPersistent("redis_addr", "redis-addr")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("WEATHERTILES")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

func initLogging() {
	levelStr := strings.ToLower(viper.GetString("log-level"))
	level := slog.LevelInfo
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error", "err":
		level = slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "Unknown log level %q, defaulting to info\n", levelStr)
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}
