package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/energyshield/internal/fsutil"
	"github.com/banshee-data/energyshield/internal/lut"
)

func TestWriteTable_Formats(t *testing.T) {
	bands, err := synthBands(defaultSynthSpec())
	require.NoError(t, err)

	for _, format := range []string{"gob", "wire"} {
		t.Run(format, func(t *testing.T) {
			fsys := fsutil.NewMemoryFileSystem()
			require.NoError(t, writeTable(fsys, "out/synthetic.lut", bands, format, false))

			tbl, err := lut.LoadFile(fsys, "out/synthetic.lut", nil)
			require.NoError(t, err)
			assert.Equal(t, len(bands), tbl.Len())
			assert.False(t, fsys.Exists("out/synthetic.lut.tmp"))
		})
	}
}

func TestWriteTable_RefusesOverwrite(t *testing.T) {
	bands, err := synthBands(defaultSynthSpec())
	require.NoError(t, err)

	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("synthetic.lut", []byte("keep"))

	err = writeTable(fsys, "synthetic.lut", bands, "gob", false)
	assert.ErrorIs(t, err, errOutputExists)
	data, _ := fsys.ReadFile("synthetic.lut")
	assert.Equal(t, "keep", string(data))

	require.NoError(t, writeTable(fsys, "synthetic.lut", bands, "gob", true))
	_, err = lut.LoadFile(fsys, "synthetic.lut", nil)
	assert.NoError(t, err)
}

func TestWriteTable_UnknownFormat(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	err := writeTable(fsys, "synthetic.lut", nil, "csv", false)
	assert.ErrorContains(t, err, `unknown format "csv"`)
	assert.False(t, fsys.Exists("synthetic.lut"))
}
