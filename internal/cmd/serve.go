package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/weathertiles/core/internal/engine"
	"github.com/weathertiles/core/internal/engine/errkind"
	"github.com/weathertiles/core/internal/tile"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve weather tiles over HTTP, building them on demand",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")

	mustBind := func(key, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}
	mustBind("serve.addr", "addr")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	ctx := context.Background()
	e, err := buildEngine(ctx, logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("engine shutdown", "error", err)
		}
	}()

	addr := viper.GetString("serve.addr")

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/tiles/", withCORS(newTileHandler(e)))

	logger.Info("tileserver listening", "addr", addr)
	fmt.Printf("\n  -> http://%s/tiles/{layer}/{style}/{tileMatrixSet}/{z}/{x}/{y}.png\n\n", addr)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return srv.ListenAndServe()
}

// newTileHandler parses a WMTS-shaped path — /tiles/{layer}/{style}/{tms}/{z}/{x}/{y}.png
// — into a RenderRequest and serves the resulting PNG.
func newTileHandler(e *engine.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := parseTileRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp, err := e.RenderTile(r.Context(), req)
		if err != nil {
			writeTileError(w, err)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=60")
		w.Header().Set("X-Cache-Tier", tierLabel(resp.Tier))
		w.Header().Set("X-Build-Duration-Ms", strconv.FormatInt(resp.BuiltDurationMS, 10))
		_, _ = w.Write(resp.Bytes)
	})
}

func tierLabel(t engine.CacheTier) string {
	switch t {
	case engine.TierL1:
		return "l1"
	case engine.TierL2:
		return "l2"
	default:
		return "miss"
	}
}

// parseTileRequest maps an incoming HTTP request path and query string onto
// an engine.RenderRequest. Path: /tiles/{layer}/{style}/{tileMatrixSet}/{z}/{x}/{y.png}.
// Query: reference_time / forecast_offset_minutes for forecast layers,
// valid_time for observation layers; neither present means Unspecified
// (latest available).
func parseTileRequest(r *http.Request) (engine.RenderRequest, error) {
	const prefix = "/tiles/"
	path := r.URL.Path
	if len(path) < len(prefix) {
		return engine.RenderRequest{}, fmt.Errorf("malformed tile path")
	}
	path = path[len(prefix):]

	parts := strings.Split(path, "/")
	if len(parts) != 6 {
		return engine.RenderRequest{}, fmt.Errorf("expected /tiles/{layer}/{style}/{tileMatrixSet}/{z}/{x}/{y}.png")
	}
	for _, p := range parts {
		if p == "" {
			return engine.RenderRequest{}, fmt.Errorf("expected /tiles/{layer}/{style}/{tileMatrixSet}/{z}/{x}/{y}.png")
		}
	}
	layerID, styleID, tms, zStr, xStr, yFile := parts[0], parts[1], parts[2], parts[3], parts[4], parts[5]
	yStr := yFile
	for i := len(yFile) - 1; i >= 0; i-- {
		if yFile[i] == '.' {
			yStr = yFile[:i]
			break
		}
	}

	z, err := strconv.ParseUint(zStr, 10, 32)
	if err != nil {
		return engine.RenderRequest{}, fmt.Errorf("bad zoom %q", zStr)
	}
	x, err := strconv.ParseUint(xStr, 10, 32)
	if err != nil {
		return engine.RenderRequest{}, fmt.Errorf("bad column %q", xStr)
	}
	y, err := strconv.ParseUint(yStr, 10, 32)
	if err != nil {
		return engine.RenderRequest{}, fmt.Errorf("bad row %q", yStr)
	}

	tq, err := parseTimeQuery(r)
	if err != nil {
		return engine.RenderRequest{}, err
	}

	return engine.RenderRequest{
		LayerID:         layerID,
		StyleID:         styleID,
		TileMatrixSetID: tms,
		Zoom:            uint32(z),
		Col:             uint32(x),
		Row:             uint32(y),
		Time:            tq,
	}, nil
}

func parseTimeQuery(r *http.Request) (tile.TimeQuery, error) {
	q := r.URL.Query()

	if rt := q.Get("reference_time"); rt != "" {
		refTime, err := time.Parse(time.RFC3339, rt)
		if err != nil {
			return tile.TimeQuery{}, fmt.Errorf("bad reference_time: %w", err)
		}
		offsetMin := 0
		if raw := q.Get("forecast_offset_minutes"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return tile.TimeQuery{}, fmt.Errorf("bad forecast_offset_minutes: %w", err)
			}
			offsetMin = v
		}
		return tile.Exact(refTime, time.Duration(offsetMin)*time.Minute), nil
	}

	if vt := q.Get("valid_time"); vt != "" {
		validTime, err := time.Parse(time.RFC3339, vt)
		if err != nil {
			return tile.TimeQuery{}, fmt.Errorf("bad valid_time: %w", err)
		}
		return tile.Latest(validTime), nil
	}

	return tile.Unspecified(), nil
}

func writeTileError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errkind.Of(err) {
	case errkind.BadRequest:
		status = http.StatusBadRequest
	case errkind.NoData:
		status = http.StatusNotFound
	case errkind.Timeout:
		status = http.StatusGatewayTimeout
	case errkind.Transient:
		status = http.StatusBadGateway
	case errkind.Shutdown:
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logger.Error("tile render failed", "error", err)
		http.Error(w, http.StatusText(status), status)
		return
	}
	http.Error(w, err.Error(), status)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
