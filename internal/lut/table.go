package lut

import (
	"fmt"
	"io"
	"sort"

	"github.com/banshee-data/energyshield/internal/fsutil"
)

// Range restricts a table to the half-open band interval [Lo, Hi).
type Range struct {
	Lo int
	Hi int
}

func (r Range) String() string { return fmt.Sprintf("[%d, %d)", r.Lo, r.Hi) }

// Table is an immutable set of bands sorted ascending by offset, all built
// with the same Params. Callers must not mutate slices reached through a
// Band returned by the table.
type Table struct {
	params  Params
	bands   []Band
	offsets []float64
}

// NewTable validates bands and builds a Table. The input slice is copied
// before sorting. When rng is non-nil the sorted table is truncated to
// bands [rng.Lo, rng.Hi).
func NewTable(bands []Band, rng *Range) (*Table, error) {
	if len(bands) == 0 {
		return nil, ErrEmptyTable
	}

	sorted := make([]Band, len(bands))
	copy(sorted, bands)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	// NaN never compares equal, so non-finite parameters are rejected
	// before bands are compared with each other.
	for i := range sorted {
		if name := sorted[i].Params.firstNonFinite(); name != "" {
			return nil, &MalformedBandError{
				Band:   i,
				Reason: fmt.Sprintf("parameter %s is %g", name, sorted[i].Params.value(name)),
			}
		}
	}

	params := sorted[0].Params
	for i := 1; i < len(sorted); i++ {
		if name := params.firstDifference(sorted[i].Params); name != "" {
			return nil, &InconsistentParameterError{
				Param: name,
				Band:  i,
				Want:  params.value(name),
				Got:   sorted[i].Params.value(name),
			}
		}
	}
	for i := range sorted {
		if reason := sorted[i].validate(); reason != "" {
			return nil, &MalformedBandError{Band: i, Reason: reason}
		}
	}

	offsets := make([]float64, len(sorted))
	for i := range sorted {
		offsets[i] = sorted[i].Offset
	}

	if rng != nil {
		if rng.Lo < 0 || rng.Lo >= rng.Hi || rng.Hi > len(sorted) {
			return nil, fmt.Errorf("%w: %s must satisfy 0 <= lo < hi <= %d", ErrInvalidRange, rng, len(sorted))
		}
		sorted = sorted[rng.Lo:rng.Hi:rng.Hi]
		offsets = offsets[rng.Lo:rng.Hi:rng.Hi]
	}

	return &Table{params: params, bands: sorted, offsets: offsets}, nil
}

// Load decodes a serialised table from r and validates it.
func Load(r io.Reader, rng *Range) (*Table, error) {
	bands, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return NewTable(bands, rng)
}

// LoadFile reads and validates the table stored at path.
func LoadFile(fsys fsutil.FileSystem, path string, rng *Range) (*Table, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lut file: %w", err)
	}
	defer f.Close()

	t, err := Load(f, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to load lut %s: %w", path, err)
	}
	return t, nil
}

// Params returns the shared problem parameters.
func (t *Table) Params() Params { return t.params }

// Len returns the number of bands.
func (t *Table) Len() int { return len(t.bands) }

// Band returns band i. The returned value shares its slices with the table.
func (t *Table) Band(i int) Band { return t.bands[i] }

// Offsets returns a copy of the band offsets in ascending order.
func (t *Table) Offsets() []float64 {
	out := make([]float64, len(t.offsets))
	copy(out, t.offsets)
	return out
}

// Rmin is Params().Rmin.
func (t *Table) Rmin(xi float64) float64 { return t.params.Rmin(xi) }
