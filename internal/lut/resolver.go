package lut

import (
	"math"

	"github.com/banshee-data/energyshield/internal/monitoring"
)

// Query is one delay-margin lookup.
type Query struct {
	R    float64
	Xi   float64 // phase, must lie in [-pi, pi]
	Beta float64 // must lie in [-BetaMax, BetaMax]

	// LongDeltaTLimit caps the velocity bound used beyond the outermost
	// band. It must be non-negative; zero disables extrapolation for any
	// non-negative tabulated value.
	LongDeltaTLimit float64

	// Debug emits trace lines through the resolver's logger.
	Debug bool
}

// Interval is a closed coordinate interval [Lo, Hi].
type Interval struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// Result is a resolved query together with the intermediate values that
// produced it. Band is -1 when no band applies.
type Result struct {
	DeltaT       float64   `json:"delta_t"`
	Band         int       `json:"band"`
	Offset       float64   `json:"offset"`
	Rmin         float64   `json:"rmin"`
	Margins      []float64 `json:"margins"`
	XiIndex      int       `json:"xi_index"`
	BetaIndex    int       `json:"beta_index"`
	XiInterval   Interval  `json:"xi_interval"`
	BetaInterval Interval  `json:"beta_interval"`
	LUTValue     float64   `json:"lut_value"`
	VmaxBound    float64   `json:"vmax_bound"`
	Extrapolated bool      `json:"extrapolated"`
}

// Resolver answers deltaT queries against a single Table. It holds no
// mutable state and is safe for concurrent use.
type Resolver struct {
	table *Table
	logf  func(format string, v ...interface{})
}

// NewResolver returns a Resolver over t. Debug traces go to
// monitoring.Logf unless replaced with SetLogger.
func NewResolver(t *Table) *Resolver {
	return &Resolver{table: t}
}

// SetLogger routes debug traces to f. Passing nil restores monitoring.Logf.
// Call it before sharing the resolver between goroutines.
func (r *Resolver) SetLogger(f func(format string, v ...interface{})) {
	r.logf = f
}

// Table returns the table the resolver reads from.
func (r *Resolver) Table() *Table { return r.table }

func (r *Resolver) tracef(format string, v ...interface{}) {
	if r.logf != nil {
		r.logf(format, v...)
		return
	}
	monitoring.Logf(format, v...)
}

// DeltaT returns the delay margin for (rr, xi, beta).
func (r *Resolver) DeltaT(rr, xi, beta, longDeltaTLimit float64) (float64, error) {
	res, err := r.Resolve(Query{R: rr, Xi: xi, Beta: beta, LongDeltaTLimit: longDeltaTLimit})
	if err != nil {
		return 0, err
	}
	return res.DeltaT, nil
}

// Resolve selects the band whose threshold r exceeds by the smallest
// positive margin, floor-indexes (xi, beta) in that band's grid and returns
// the tabulated value. For the largest-offset band the velocity bound
// min((r - rmin(pi) - 2)/vmax, LongDeltaTLimit) replaces the tabulated value
// when it is larger. If r exceeds no band threshold the result is 0.
func (r *Resolver) Resolve(q Query) (Result, error) {
	t := r.table
	p := t.params

	if err := checkClosed("xi", q.Xi, -math.Pi, math.Pi); err != nil {
		return Result{}, err
	}
	if err := checkClosed("beta", q.Beta, -p.BetaMax, p.BetaMax); err != nil {
		return Result{}, err
	}
	if err := checkClosed("longDeltaTLimit", q.LongDeltaTLimit, 0, math.Inf(1)); err != nil {
		return Result{}, err
	}

	rmin := p.Rmin(q.Xi)
	margins := make([]float64, len(t.offsets))
	for i, off := range t.offsets {
		margins[i] = q.R - (rmin + off)
	}
	bandIdx := selectBand(margins)

	if q.Debug {
		r.tracef("[lut] offset comparisons %v", margins)
		r.tracef("[lut] valid bands = %v", validBands(margins))
	}

	res := Result{Band: -1, Rmin: rmin, Margins: margins, XiIndex: -1, BetaIndex: -1}
	if bandIdx < 0 {
		return res, nil
	}

	b := &t.bands[bandIdx]
	res.Band = bandIdx
	res.Offset = b.Offset
	if q.Debug {
		r.tracef("[lut] using band %d with offset %g; rmin(%g) = %g", bandIdx, b.Offset, q.Xi, rmin)
	}

	xiIndex := cellIndex(q.Xi, -math.Pi, 2*math.Pi, b.XiIncrement, len(b.XiPoints))
	if xiIndex < 0 || xiIndex >= len(b.XiPoints) {
		return Result{}, &InternalIndexError{Axis: "xi", Band: bandIdx, Index: xiIndex, Len: len(b.XiPoints)}
	}
	betaIndex := cellIndex(q.Beta, -p.BetaMax, 2*p.BetaMax, b.BetaIncrement, len(b.BetaPoints))
	if betaIndex < 0 || betaIndex >= len(b.BetaPoints) {
		return Result{}, &InternalIndexError{Axis: "beta", Band: bandIdx, Index: betaIndex, Len: len(b.BetaPoints)}
	}
	res.XiIndex = xiIndex
	res.BetaIndex = betaIndex

	xiLeft := b.XiPoints[xiIndex]
	betaLeft := b.BetaPoints[betaIndex]
	res.XiInterval = Interval{Lo: xiLeft, Hi: math.Min(xiLeft+b.XiIncrement, math.Pi)}
	res.BetaInterval = Interval{Lo: betaLeft, Hi: math.Min(betaLeft+b.BetaIncrement, p.BetaMax)}
	if q.Debug {
		r.tracef("[lut] xi=%g; xi interval = [%g, %g]", q.Xi, res.XiInterval.Lo, res.XiInterval.Hi)
		r.tracef("[lut] beta=%g; beta interval = [%g, %g]", q.Beta, res.BetaInterval.Lo, res.BetaInterval.Hi)
	}

	res.LUTValue = b.Grid[xiIndex][betaIndex]
	res.VmaxBound = math.Min((q.R-p.Rmin(math.Pi)-2)/p.Vmax, q.LongDeltaTLimit)

	res.DeltaT = res.LUTValue
	if bandIdx == len(t.bands)-1 && res.VmaxBound > res.LUTValue {
		res.DeltaT = res.VmaxBound
		res.Extrapolated = true
	}
	return res, nil
}

// selectBand returns the index of the smallest strictly positive margin, or
// -1 if none is positive. Exact ties go to the lowest index.
func selectBand(margins []float64) int {
	best := -1
	for i, m := range margins {
		if !(m > 0) {
			continue
		}
		if best < 0 || m < margins[best] {
			best = i
		}
	}
	return best
}

func validBands(margins []float64) []int {
	var idx []int
	for i, m := range margins {
		if m > 0 {
			idx = append(idx, i)
		}
	}
	return idx
}

// cellIndex floors (v-lo)/inc. A value on the closed upper edge of the
// domain falls into the last cell provided the n cells cover span.
func cellIndex(v, lo, span, inc float64, n int) int {
	idx := int(math.Floor((v - lo) / inc))
	if idx == n && float64(n)*inc >= span*(1-1e-9) {
		idx = n - 1
	}
	return idx
}

func checkClosed(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return &OutOfRangeError{Param: name, Value: v, Min: lo, Max: hi}
	}
	return nil
}
