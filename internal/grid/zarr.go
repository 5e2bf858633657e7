// Package grid implements chunked access to gridded source data stored in
// object storage (spec.md §4.4): zarr-like metadata, an object store
// abstraction, the L3 decompressed-chunk cache, and the region reader that
// turns a dataset descriptor + geographic bounding box into a dense
// subarray plus validity mask.
package grid

import "encoding/json"

// Metadata mirrors the <storage_prefix>/zarr.json object: shape,
// chunk_shape, data_type, codec, fill_value, and array-level attributes.
// The codec is read from a single "codec" string; a "codecs" list is not
// read.
type Metadata struct {
	Shape      [2]int            `json:"shape"`       // [ny, nx]
	ChunkShape [2]int            `json:"chunk_shape"`  // [chunk_h, chunk_w]
	DataType   string            `json:"data_type"`    // "float32" or "float64"
	Codec      string            `json:"codec"`        // "zstd" or "gzip"
	FillValue  float32           `json:"fill_value"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ChunksPerAxis returns how many chunks cover each axis, rounding up.
func (m Metadata) ChunksPerAxis() (cy, cx int) {
	cy = (m.Shape[0] + m.ChunkShape[0] - 1) / m.ChunkShape[0]
	cx = (m.Shape[1] + m.ChunkShape[1] - 1) / m.ChunkShape[1]
	return cy, cx
}

// ParseMetadata decodes a zarr.json object's bytes.
func ParseMetadata(raw []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

// Marshal encodes Metadata back to its zarr.json form, used by tests and
// by any offline fixture-generation tooling.
func (m Metadata) Marshal() ([]byte, error) {
	return json.Marshal(m)
}
