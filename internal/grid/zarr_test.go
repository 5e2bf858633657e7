package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataMarshalRoundTrip(t *testing.T) {
	m := Metadata{
		Shape:      [2]int{720, 1440},
		ChunkShape: [2]int{64, 64},
		DataType:   "float32",
		Codec:      "zstd",
		FillValue:  -9999,
		Attributes: map[string]string{"units": "K"},
	}
	raw, err := m.Marshal()
	require.NoError(t, err)

	got, err := ParseMetadata(raw)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestChunksPerAxisRoundsUp(t *testing.T) {
	m := Metadata{Shape: [2]int{100, 100}, ChunkShape: [2]int{64, 64}}
	cy, cx := m.ChunksPerAxis()
	assert.Equal(t, 2, cy)
	assert.Equal(t, 2, cx)
}
