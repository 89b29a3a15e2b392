package lut

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
)

// blobVersion is bumped whenever the Band layout changes incompatibly.
const blobVersion = 1

// lutFile is the on-disk envelope for a serialised band collection.
type lutFile struct {
	Version int
	Bands   []Band
}

// Encode writes bands to w using gob encoding and gzip compression.
func Encode(w io.Writer, bands []Band) error {
	gz := gzip.NewWriter(w)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(lutFile{Version: blobVersion, Bands: bands}); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode lut: %w", err)
	}
	return gz.Close()
}

// Decode reads a band collection written by Encode or EncodeWire; the
// format is detected from the leading bytes. Bands are returned in stored
// order and are not validated; use Load for a ready Table.
func Decode(r io.Reader) ([]Band, error) {
	br := bufio.NewReader(r)
	if head, _ := br.Peek(len(wireMagic)); bytes.Equal(head, wireMagic) {
		blob, err := io.ReadAll(br)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read blob: %v", ErrCorruptBlob, err)
		}
		return decodeWire(blob)
	}

	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create gzip reader: %v", ErrCorruptBlob, err)
	}
	defer gz.Close()

	var f lutFile
	if err := gob.NewDecoder(gz).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: failed to decode bands: %v", ErrCorruptBlob, err)
	}
	if f.Version != blobVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptBlob, f.Version)
	}
	return f.Bands, nil
}

// Marshal is Encode into a byte slice.
func Marshal(bands []Band) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, bands); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal is Decode from a byte slice.
func Unmarshal(blob []byte) ([]Band, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: empty blob", ErrCorruptBlob)
	}
	return Decode(bytes.NewReader(blob))
}
