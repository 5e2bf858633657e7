package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/weathertiles/core/internal/geo"
	"github.com/weathertiles/core/internal/projection"
)

// manifestProjection is the wire shape of a dataset's projection, tagged by
// Kind to select which of the geographic/lambert/geostationary fields apply.
// Field names mirror the projection package's own constructors, not a
// generic GIS vocabulary, so the manifest and the code never drift apart.
type manifestProjection struct {
	Kind string `json:"kind"` // "geographic_regular", "lambert_conformal", "geostationary"

	// geographic_regular
	OriginLon float64 `json:"origin_lon,omitempty"`
	OriginLat float64 `json:"origin_lat,omitempty"`
	Dx        float64 `json:"dx,omitempty"`
	Dy        float64 `json:"dy,omitempty"`

	// lambert_conformal (reuses OriginLat/OriginLon above as the projection
	// origin and Dx/Dy above as the grid-space step, plus the grid-space
	// origin below)
	StdLat1      float64 `json:"std_lat_1,omitempty"`
	StdLat2      float64 `json:"std_lat_2,omitempty"`
	EarthRadiusM float64 `json:"earth_radius_m,omitempty"`
	GridOriginX  float64 `json:"grid_origin_x,omitempty"`
	GridOriginY  float64 `json:"grid_origin_y,omitempty"`

	// geostationary (also reuses GridOriginX/Y and Dx/Dy above for the
	// scan-angle grid origin and step)
	SatelliteID        string  `json:"satellite_id,omitempty"`
	SubLonDeg          float64 `json:"sub_lon_deg,omitempty"`
	PerspectiveHeightM float64 `json:"perspective_height_m,omitempty"`
	SemiMajorM         float64 `json:"semi_major_m,omitempty"`
	SemiMinorM         float64 `json:"semi_minor_m,omitempty"`
}

func (p manifestProjection) toDescriptor() (projection.Descriptor, error) {
	switch p.Kind {
	case "geographic_regular", "":
		return projection.Descriptor{Geographic: &projection.GeographicRegular{
			OriginLon: p.OriginLon, OriginLat: p.OriginLat, Dx: p.Dx, Dy: p.Dy,
		}}, nil
	case "lambert_conformal":
		return projection.Descriptor{Lambert: &projection.LambertConformal{
			StdLat1:      p.StdLat1,
			StdLat2:      p.StdLat2,
			OriginLat:    p.OriginLat,
			OriginLon:    p.OriginLon,
			EarthRadiusM: p.EarthRadiusM,
			GridOriginX:  p.GridOriginX,
			GridOriginY:  p.GridOriginY,
			Dx:           p.Dx,
			Dy:           p.Dy,
		}}, nil
	case "geostationary":
		return projection.Descriptor{Geostationary: &projection.Geostationary{
			SatelliteID:        p.SatelliteID,
			SubLonDeg:          p.SubLonDeg,
			PerspectiveHeightM: p.PerspectiveHeightM,
			SemiMajorM:         p.SemiMajorM,
			SemiMinorM:         p.SemiMinorM,
			GridOriginX:        p.GridOriginX,
			GridOriginY:        p.GridOriginY,
			Dx:                 p.Dx,
			Dy:                 p.Dy,
		}}, nil
	default:
		return projection.Descriptor{}, fmt.Errorf("unknown projection kind %q", p.Kind)
	}
}

// manifestEntry is the ingestion collaborator's JSON output contract for
// one dataset descriptor: snake_case fields, RFC3339 timestamps, and a
// tagged projection.kind selecting which projection variant applies.
type manifestEntry struct {
	ID            string     `json:"id"`
	Model         string     `json:"model"`
	Parameter     string     `json:"parameter"`
	Level         string     `json:"level"`
	ReferenceTime string     `json:"reference_time"`
	ValidTime     string     `json:"valid_time"`
	InsertedAt    string     `json:"inserted_at"`
	BBox          [4]float64 `json:"bbox"` // min_lon, min_lat, max_lon, max_lat
	GridShape     [2]int     `json:"grid_shape"`
	ChunkShape    [2]int     `json:"chunk_shape"`
	Codec         string     `json:"codec"`
	FillValue     float32    `json:"fill_value"`
	StoragePrefix string     `json:"storage_prefix"`
	DataType      string     `json:"data_type,omitempty"`

	Projection manifestProjection `json:"projection"`
}

func (m manifestEntry) toDescriptor() (Descriptor, error) {
	refTime, err := parseManifestTime(m.ReferenceTime)
	if err != nil {
		return Descriptor{}, fmt.Errorf("catalog: dataset %s: reference_time: %w", m.ID, err)
	}
	validTime, err := parseManifestTime(m.ValidTime)
	if err != nil {
		return Descriptor{}, fmt.Errorf("catalog: dataset %s: valid_time: %w", m.ID, err)
	}
	insertedAt, err := parseManifestTime(m.InsertedAt)
	if err != nil {
		return Descriptor{}, fmt.Errorf("catalog: dataset %s: inserted_at: %w", m.ID, err)
	}

	proj, err := m.Projection.toDescriptor()
	if err != nil {
		return Descriptor{}, fmt.Errorf("catalog: dataset %s: projection: %w", m.ID, err)
	}

	return Descriptor{
		ID:            m.ID,
		Model:         m.Model,
		Parameter:     m.Parameter,
		Level:         m.Level,
		ReferenceTime: refTime,
		ValidTime:     validTime,
		InsertedAt:    insertedAt,
		BBox:          geo.BoundingBox{MinLon: m.BBox[0], MinLat: m.BBox[1], MaxLon: m.BBox[2], MaxLat: m.BBox[3]},
		GridShape:     m.GridShape,
		ChunkShape:    m.ChunkShape,
		Codec:         m.Codec,
		FillValue:     m.FillValue,
		Projection:    proj,
		StoragePrefix: m.StoragePrefix,
		DataType:      m.DataType,
	}, nil
}

func parseManifestTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// LoadManifest reads a JSON array of dataset descriptors from path — the
// ingestion pipeline's published output contract (SPEC_FULL.md §4.4).
func LoadManifest(path string) ([]Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read manifest: %w", err)
	}
	var entries []manifestEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("catalog: parse manifest: %w", err)
	}
	out := make([]Descriptor, 0, len(entries))
	for _, e := range entries {
		d, err := e.toDescriptor()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
