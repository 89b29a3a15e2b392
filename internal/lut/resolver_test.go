package lut

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTable(t *testing.T, bands []Band, rng *Range) *Table {
	t.Helper()
	tbl, err := NewTable(bands, rng)
	require.NoError(t, err)
	return tbl
}

// quietResolver returns a resolver whose trace output is discarded.
func quietResolver(tbl *Table) *Resolver {
	r := NewResolver(tbl)
	r.SetLogger(func(string, ...interface{}) {})
	return r
}

// ---------------------------------------------------------------------------
// Band selection
// ---------------------------------------------------------------------------

func TestResolve_TwoBandExample(t *testing.T) {
	t.Parallel()
	p := testParams()
	tbl := mustTable(t, []Band{constBand(p, 0, 8, 4, 3), constBand(p, 5, 8, 4, 7)}, nil)

	res, err := quietResolver(tbl).Resolve(Query{R: 10, Xi: 0, Beta: 0})
	require.NoError(t, err)

	assert.Equal(t, []float64{9, 4}, res.Margins)
	assert.Equal(t, 1, res.Band)
	assert.Equal(t, 5.0, res.Offset)
	assert.Equal(t, 1.0, res.Rmin)
	assert.Equal(t, 7.0, res.DeltaT)
	assert.False(t, res.Extrapolated)
}

func TestResolve_ZeroWhenNoBandApplies(t *testing.T) {
	t.Parallel()
	p := testParams()
	tbl := mustTable(t, []Band{constBand(p, 0, 8, 4, 3), constBand(p, 5, 8, 4, 7)}, nil)
	r := quietResolver(tbl)

	for _, xi := range []float64{-math.Pi, -1, 0, 1, math.Pi} {
		rr := p.Rmin(xi) // margin exactly 0 for band 0: not valid
		got, err := r.DeltaT(rr, xi, 0, 100)
		require.NoError(t, err)
		assert.Equal(t, 0.0, got, "xi=%g", xi)

		got, err = r.DeltaT(rr-3, xi, 0.5, 100)
		require.NoError(t, err)
		assert.Equal(t, 0.0, got, "xi=%g", xi)
	}

	res, err := r.Resolve(Query{R: 0.5})
	require.NoError(t, err)
	assert.Equal(t, -1, res.Band)
	assert.Equal(t, -1, res.XiIndex)
}

func TestResolve_StrictMargin(t *testing.T) {
	t.Parallel()
	p := testParams()
	tbl := mustTable(t, []Band{constBand(p, 0, 8, 4, 3), constBand(p, 2, 8, 4, 7)}, nil)

	// r = rmin(0) + 2 sits exactly on band 1's threshold, so band 0 wins.
	res, err := quietResolver(tbl).Resolve(Query{R: 3})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Band)
	assert.Equal(t, 3.0, res.DeltaT)
}

func TestResolve_TieGoesToLowestIndex(t *testing.T) {
	t.Parallel()
	p := testParams()
	tbl := mustTable(t, []Band{
		constBand(p, 1, 8, 4, 10),
		constBand(p, 1, 8, 4, 20),
		constBand(p, 4, 8, 4, 30),
	}, nil)

	res, err := quietResolver(tbl).Resolve(Query{R: 3})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Band)
	assert.Equal(t, 10.0, res.DeltaT)
}

func TestResolve_PicksMinimalPositiveMargin(t *testing.T) {
	t.Parallel()
	p := testParams()
	offsets := []float64{0, 0.5, 1.25, 2, 3.5, 6, 9}
	bands := make([]Band, len(offsets))
	for i, off := range offsets {
		bands[i] = constBand(p, off, 12, 6, float64(i))
	}
	tbl := mustTable(t, bands, nil)
	r := quietResolver(tbl)

	rnd := rand.New(rand.NewSource(7))
	for n := 0; n < 500; n++ {
		q := Query{
			R:    rnd.Float64() * 15,
			Xi:   (rnd.Float64()*2 - 1) * math.Pi,
			Beta: (rnd.Float64()*2 - 1) * p.BetaMax,
		}
		res, err := r.Resolve(q)
		require.NoError(t, err)

		if res.Band < 0 {
			for i, m := range res.Margins {
				assert.LessOrEqual(t, m, 0.0, "band %d has positive margin but none chosen", i)
			}
			assert.Equal(t, 0.0, res.DeltaT)
			continue
		}

		chosen := res.Margins[res.Band]
		require.Greater(t, chosen, 0.0)
		for i, m := range res.Margins {
			if m > 0 {
				assert.LessOrEqual(t, chosen, m, "query %+v: band %d beats chosen %d", q, i, res.Band)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Domain checks and indexing
// ---------------------------------------------------------------------------

func TestResolve_OutOfRange(t *testing.T) {
	t.Parallel()
	p := testParams()
	r := quietResolver(mustTable(t, []Band{constBand(p, 0, 8, 4, 1)}, nil))

	cases := []struct {
		name  string
		q     Query
		param string
	}{
		{"xi above pi", Query{R: 5, Xi: math.Nextafter(math.Pi, 4)}, "xi"},
		{"xi below -pi", Query{R: 5, Xi: -4}, "xi"},
		{"xi NaN", Query{R: 5, Xi: math.NaN()}, "xi"},
		{"beta above max", Query{R: 5, Beta: 1.0001}, "beta"},
		{"beta below min", Query{R: 5, Beta: -2}, "beta"},
		{"negative limit", Query{R: 5, LongDeltaTLimit: -0.1}, "longDeltaTLimit"},
		{"NaN limit", Query{R: 5, LongDeltaTLimit: math.NaN()}, "longDeltaTLimit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := r.Resolve(tc.q)
			require.ErrorIs(t, err, ErrOutOfRange)
			var oor *OutOfRangeError
			require.ErrorAs(t, err, &oor)
			assert.Equal(t, tc.param, oor.Param)
		})
	}
}

func TestResolve_ClosedBoundariesAccepted(t *testing.T) {
	t.Parallel()
	p := testParams()
	// 7 xi cells and 3 beta cells do not divide the domain exactly in
	// floating point.
	band := NewUniformBand(p, 0, 7, 3, func(xi, beta float64) float64 { return xi + 10*beta })
	r := quietResolver(mustTable(t, []Band{band}, nil))

	for _, xi := range []float64{-math.Pi, math.Pi} {
		for _, beta := range []float64{-p.BetaMax, p.BetaMax} {
			res, err := r.Resolve(Query{R: 20, Xi: xi, Beta: beta})
			require.NoError(t, err, "xi=%g beta=%g", xi, beta)
			assert.GreaterOrEqual(t, res.XiIndex, 0)
			assert.Less(t, res.XiIndex, 7)
			assert.GreaterOrEqual(t, res.BetaIndex, 0)
			assert.Less(t, res.BetaIndex, 3)
		}
	}

	res, err := r.Resolve(Query{R: 20, Xi: math.Pi, Beta: p.BetaMax})
	require.NoError(t, err)
	assert.Equal(t, 6, res.XiIndex)
	assert.Equal(t, 2, res.BetaIndex)
	assert.Equal(t, band.Grid[6][2], res.LUTValue)
	assert.InDelta(t, math.Pi, res.XiInterval.Hi, 1e-12)
	assert.InDelta(t, p.BetaMax, res.BetaInterval.Hi, 1e-12)
	assert.LessOrEqual(t, res.XiInterval.Hi, math.Pi)
}

func TestCellIndex_InRangeForEveryBand(t *testing.T) {
	t.Parallel()
	p := testParams()
	tbl := mustTable(t, []Band{
		constBand(p, 0, 8, 4, 0),
		constBand(p, 1, 36, 10, 0),
		constBand(p, 2, 7, 3, 0),
		constBand(p, 3, 1, 1, 0),
		constBand(p, 4, 101, 33, 0),
	}, nil)

	samples := 2000
	for bi := 0; bi < tbl.Len(); bi++ {
		b := tbl.Band(bi)
		nx, nb := len(b.XiPoints), len(b.BetaPoints)
		for s := 0; s <= samples; s++ {
			xi := -math.Pi + 2*math.Pi*float64(s)/float64(samples)
			if s == samples {
				xi = math.Pi
			}
			idx := cellIndex(xi, -math.Pi, 2*math.Pi, b.XiIncrement, nx)
			require.True(t, idx >= 0 && idx < nx, "band %d xi=%v idx=%d n=%d", bi, xi, idx, nx)

			beta := -p.BetaMax + 2*p.BetaMax*float64(s)/float64(samples)
			if s == samples {
				beta = p.BetaMax
			}
			idx = cellIndex(beta, -p.BetaMax, 2*p.BetaMax, b.BetaIncrement, nb)
			require.True(t, idx >= 0 && idx < nb, "band %d beta=%v idx=%d n=%d", bi, beta, idx, nb)
		}
		near := math.Nextafter(math.Pi, 0)
		idx := cellIndex(near, -math.Pi, 2*math.Pi, b.XiIncrement, nx)
		assert.Equal(t, nx-1, idx, "band %d just below pi", bi)
	}
}

func TestResolve_FloorIndexing(t *testing.T) {
	t.Parallel()
	p := testParams()
	band := NewUniformBand(p, 0, 4, 2, func(xi, beta float64) float64 { return xi*100 + beta })
	r := quietResolver(mustTable(t, []Band{band}, nil))

	// xi cells start at -pi, -pi/2, 0, pi/2; beta cells at -1, 0.
	res, err := r.Resolve(Query{R: 20, Xi: 0.1, Beta: -0.2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.XiIndex)
	assert.Equal(t, 0, res.BetaIndex)
	assert.Equal(t, Interval{Lo: 0, Hi: math.Pi / 2}, res.XiInterval)
	assert.Equal(t, Interval{Lo: -1, Hi: 0}, res.BetaInterval)
	assert.Equal(t, band.Grid[2][0], res.LUTValue)

	// Exactly on a grid line belongs to the cell that starts there.
	res, err = r.Resolve(Query{R: 20, Xi: 0, Beta: 0})
	require.NoError(t, err)
	assert.Equal(t, 2, res.XiIndex)
	assert.Equal(t, 1, res.BetaIndex)
}

func TestResolve_InternalIndexError(t *testing.T) {
	t.Parallel()
	p := testParams()

	t.Run("xi grid too short", func(t *testing.T) {
		t.Parallel()
		b := constBand(p, 0, 4, 2, 1)
		// Increments say 8 cells but only 4 are tabulated.
		b.XiIncrement = math.Pi / 4
		r := quietResolver(mustTable(t, []Band{b}, nil))

		_, err := r.Resolve(Query{R: 20, Xi: 0.5})
		require.ErrorIs(t, err, ErrInternalIndex)
		var iie *InternalIndexError
		require.ErrorAs(t, err, &iie)
		assert.Equal(t, "xi", iie.Axis)
		assert.Equal(t, 4, iie.Index)

		// the upper edge is not folded into a grid that stops short
		_, err = r.Resolve(Query{R: 20, Xi: math.Pi})
		assert.ErrorIs(t, err, ErrInternalIndex)
	})

	t.Run("beta grid too short", func(t *testing.T) {
		t.Parallel()
		b := constBand(p, 0, 4, 2, 1)
		b.BetaIncrement = 0.25
		r := quietResolver(mustTable(t, []Band{b}, nil))

		_, err := r.Resolve(Query{R: 20, Beta: 0.9})
		var iie *InternalIndexError
		require.ErrorAs(t, err, &iie)
		assert.Equal(t, "beta", iie.Axis)
	})

	t.Run("below all bands never indexes", func(t *testing.T) {
		t.Parallel()
		b := constBand(p, 0, 4, 2, 1)
		b.XiIncrement = math.Pi / 4
		r := quietResolver(mustTable(t, []Band{b}, nil))

		got, err := r.DeltaT(0.5, 3, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 0.0, got)
	})
}

// ---------------------------------------------------------------------------
// Extrapolation beyond the outermost band
// ---------------------------------------------------------------------------

func TestResolve_Extrapolation(t *testing.T) {
	t.Parallel()
	p := testParams()
	tbl := mustTable(t, []Band{constBand(p, 0, 8, 4, 1)}, nil)
	r := quietResolver(tbl)
	bound := (20 - p.Rmin(math.Pi) - 2) / p.Vmax // ~8

	cases := []struct {
		name         string
		limit        float64
		want         float64
		extrapolated bool
	}{
		{"no limit", 0, 1, false},
		{"limit below table", 0.5, 1, false},
		{"limit equals table", 1, 1, false},
		{"limit caps bound", 3, 3, true},
		{"bound below limit", 100, bound, true},
		{"unbounded", math.Inf(1), bound, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res, err := r.Resolve(Query{R: 20, LongDeltaTLimit: tc.limit})
			require.NoError(t, err)
			assert.InDelta(t, tc.want, res.DeltaT, 1e-12)
			assert.Equal(t, tc.extrapolated, res.Extrapolated)
			assert.Equal(t, math.Max(res.LUTValue, res.VmaxBound), res.DeltaT)
		})
	}
}

func TestResolve_ExtrapolationOnlyForLastBand(t *testing.T) {
	t.Parallel()
	p := testParams()
	tbl := mustTable(t, []Band{constBand(p, 0, 8, 4, 1), constBand(p, 30, 8, 4, 2)}, nil)
	r := quietResolver(tbl)

	// Band 0 is selected; the bound would be ~8 but band 0 is not the last.
	res, err := r.Resolve(Query{R: 20, LongDeltaTLimit: 100})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Band)
	assert.Greater(t, res.VmaxBound, res.LUTValue)
	assert.Equal(t, 1.0, res.DeltaT)
	assert.False(t, res.Extrapolated)

	// Far enough out to select band 1.
	res, err = r.Resolve(Query{R: 50, LongDeltaTLimit: 100})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Band)
	assert.True(t, res.Extrapolated)
	assert.InDelta(t, (50-p.Rmin(math.Pi)-2)/p.Vmax, res.DeltaT, 1e-12)
}

func TestResolve_ExtrapolationFollowsRangeRestriction(t *testing.T) {
	t.Parallel()
	p := testParams()
	bands := []Band{constBand(p, 0, 8, 4, 1), constBand(p, 30, 8, 4, 2)}

	// With the outer band cut away, band 0 becomes the last band.
	r := quietResolver(mustTable(t, bands, &Range{Lo: 0, Hi: 1}))
	res, err := r.Resolve(Query{R: 20, LongDeltaTLimit: 100})
	require.NoError(t, err)
	assert.True(t, res.Extrapolated)
}

// ---------------------------------------------------------------------------
// Immutability, debug output and concurrency
// ---------------------------------------------------------------------------

func buildMixedTable(t *testing.T) *Table {
	t.Helper()
	p := testParams()
	return mustTable(t, []Band{
		NewUniformBand(p, 2, 12, 6, func(xi, beta float64) float64 { return math.Abs(xi) + beta }),
		NewUniformBand(p, 0, 8, 4, func(xi, beta float64) float64 { return 1 + beta*beta }),
		NewUniformBand(p, 5, 16, 8, func(xi, beta float64) float64 { return 3 - math.Cos(xi) }),
	}, nil)
}

func TestResolve_DoesNotMutateTable(t *testing.T) {
	t.Parallel()
	tbl := buildMixedTable(t)
	want := buildMixedTable(t)
	r := quietResolver(tbl)

	rnd := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		_, err := r.Resolve(Query{
			R:               rnd.Float64() * 12,
			Xi:              (rnd.Float64()*2 - 1) * math.Pi,
			Beta:            (rnd.Float64()*2 - 1),
			LongDeltaTLimit: rnd.Float64() * 5,
			Debug:           i%2 == 0,
		})
		require.NoError(t, err)
	}

	if diff := cmp.Diff(want, tbl, cmp.AllowUnexported(Table{})); diff != "" {
		t.Fatalf("table mutated by queries (-want +got):\n%s", diff)
	}
}

func TestResolve_DebugTrace(t *testing.T) {
	t.Parallel()
	tbl := buildMixedTable(t)

	var lines []string
	traced := NewResolver(tbl)
	traced.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	q := Query{R: 7.5, Xi: 0.3, Beta: -0.4, LongDeltaTLimit: 2}
	plain, err := quietResolver(tbl).Resolve(q)
	require.NoError(t, err)
	assert.Empty(t, lines)

	q.Debug = true
	withDebug, err := traced.Resolve(q)
	require.NoError(t, err)
	assert.Equal(t, plain, withDebug)

	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "[lut] offset comparisons"))
	assert.Contains(t, lines[2], fmt.Sprintf("using band %d", plain.Band))
	assert.Contains(t, lines[3], "xi interval")
	assert.Contains(t, lines[4], "beta interval")
}

func TestResolve_ConcurrentReaders(t *testing.T) {
	t.Parallel()
	tbl := buildMixedTable(t)
	r := quietResolver(tbl)

	want := make([]float64, 64)
	for i := range want {
		v, err := r.DeltaT(float64(i)*0.2, 0.1, 0.2, 1)
		require.NoError(t, err)
		want[i] = v
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range want {
				v, err := r.DeltaT(float64(i)*0.2, 0.1, 0.2, 1)
				if err != nil {
					errs <- err
					return
				}
				if v != want[i] {
					errs <- fmt.Errorf("query %d: got %g want %g", i, v, want[i])
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
