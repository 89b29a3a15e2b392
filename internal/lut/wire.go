package lut

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// wireMagic prefixes a protobuf-encoded table so Decode can tell it apart
// from the gzip stream written by Encode.
var wireMagic = []byte("LUTW")

// Field numbers of the wire table message.
const (
	wireFieldVersion protowire.Number = 1
	wireFieldBand    protowire.Number = 2
)

// Field numbers of the wire band message. Doubles are fixed64; the axis
// points are packed and each grid row is one packed field.
const (
	bandFieldRbar protowire.Number = iota + 1
	bandFieldSigma
	bandFieldVmax
	bandFieldLr
	bandFieldDeltaFMax
	bandFieldBetaMax
	bandFieldOffset
	bandFieldXiIncrement
	bandFieldBetaIncrement
	bandFieldXiPoints
	bandFieldBetaPoints
	bandFieldGridRow
)

// EncodeWire writes bands to w in the protobuf wire format: the magic
// prefix followed by a message holding the blob version and one
// length-delimited record per band. Readers skip fields they do not know.
func EncodeWire(w io.Writer, bands []Band) error {
	b := append([]byte(nil), wireMagic...)
	b = protowire.AppendTag(b, wireFieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, blobVersion)

	var rec []byte
	for i := range bands {
		rec = appendWireBand(rec[:0], &bands[i])
		b = protowire.AppendTag(b, wireFieldBand, protowire.BytesType)
		b = protowire.AppendBytes(b, rec)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("failed to encode lut: %w", err)
	}
	return nil
}

// MarshalWire is EncodeWire into a byte slice.
func MarshalWire(bands []Band) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeWire(&buf, bands); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func appendWireBand(b []byte, band *Band) []byte {
	b = appendDouble(b, bandFieldRbar, band.Rbar)
	b = appendDouble(b, bandFieldSigma, band.Sigma)
	b = appendDouble(b, bandFieldVmax, band.Vmax)
	b = appendDouble(b, bandFieldLr, band.Lr)
	b = appendDouble(b, bandFieldDeltaFMax, band.DeltaFMax)
	b = appendDouble(b, bandFieldBetaMax, band.BetaMax)
	b = appendDouble(b, bandFieldOffset, band.Offset)
	b = appendDouble(b, bandFieldXiIncrement, band.XiIncrement)
	b = appendDouble(b, bandFieldBetaIncrement, band.BetaIncrement)
	b = appendPacked(b, bandFieldXiPoints, band.XiPoints)
	b = appendPacked(b, bandFieldBetaPoints, band.BetaPoints)
	for _, row := range band.Grid {
		b = appendPacked(b, bandFieldGridRow, row)
	}
	return b
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

// appendPacked always emits the field, even when empty, so that an empty
// grid row keeps its position.
func appendPacked(b []byte, num protowire.Number, vs []float64) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(8*len(vs)))
	for _, v := range vs {
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}

// decodeWire parses a blob written by EncodeWire, magic prefix included.
func decodeWire(blob []byte) ([]Band, error) {
	if !bytes.HasPrefix(blob, wireMagic) {
		return nil, fmt.Errorf("%w: missing wire header", ErrCorruptBlob)
	}
	b := blob[len(wireMagic):]

	version := uint64(0)
	var bands []Band
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, wireError(protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == wireFieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, wireError(protowire.ParseError(n))
			}
			version = v
			b = b[n:]
		case num == wireFieldBand && typ == protowire.BytesType:
			rec, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, wireError(protowire.ParseError(n))
			}
			band, err := parseWireBand(rec)
			if err != nil {
				return nil, fmt.Errorf("%w: band record %d: %v", ErrCorruptBlob, len(bands), err)
			}
			bands = append(bands, band)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, wireError(protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if version != blobVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptBlob, version)
	}
	return bands, nil
}

func wireError(err error) error {
	return fmt.Errorf("%w: failed to decode bands: %v", ErrCorruptBlob, err)
}

func parseWireBand(b []byte) (Band, error) {
	var band Band
	doubles := map[protowire.Number]*float64{
		bandFieldRbar:          &band.Rbar,
		bandFieldSigma:         &band.Sigma,
		bandFieldVmax:          &band.Vmax,
		bandFieldLr:            &band.Lr,
		bandFieldDeltaFMax:     &band.DeltaFMax,
		bandFieldBetaMax:       &band.BetaMax,
		bandFieldOffset:        &band.Offset,
		bandFieldXiIncrement:   &band.XiIncrement,
		bandFieldBetaIncrement: &band.BetaIncrement,
	}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Band{}, protowire.ParseError(n)
		}
		b = b[n:]

		if dst, ok := doubles[num]; ok && typ == protowire.Fixed64Type {
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return Band{}, protowire.ParseError(n)
			}
			*dst = math.Float64frombits(v)
			b = b[n:]
			continue
		}

		switch {
		case typ == protowire.BytesType && (num == bandFieldXiPoints || num == bandFieldBetaPoints || num == bandFieldGridRow):
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Band{}, protowire.ParseError(n)
			}
			vs, err := parsePacked(raw)
			if err != nil {
				return Band{}, err
			}
			switch num {
			case bandFieldXiPoints:
				band.XiPoints = vs
			case bandFieldBetaPoints:
				band.BetaPoints = vs
			default:
				band.Grid = append(band.Grid, vs)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Band{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return band, nil
}

var errPackedLength = errors.New("packed doubles length is not a multiple of 8")

func parsePacked(raw []byte) ([]float64, error) {
	if len(raw)%8 != 0 {
		return nil, errPackedLength
	}
	vs := make([]float64, 0, len(raw)/8)
	for len(raw) > 0 {
		v, n := protowire.ConsumeFixed64(raw)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		vs = append(vs, math.Float64frombits(v))
		raw = raw[n:]
	}
	return vs, nil
}
