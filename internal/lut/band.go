package lut

import (
	"fmt"
	"math"
)

// Band is one discretised offset threshold and its (xi, beta) grid.
// Bands in the same table may use different grid resolutions.
type Band struct {
	Params // shared problem parameters, repeated in every record

	Offset        float64
	XiIncrement   float64
	BetaIncrement float64
	XiPoints      []float64   // cell start values spanning [-pi, pi)
	BetaPoints    []float64   // cell start values spanning [-BetaMax, BetaMax)
	Grid          [][]float64 // delay values indexed [xiIndex][betaIndex]
}

// validate checks the grid shape against the axis point arrays.
func (b *Band) validate() string {
	switch {
	case math.IsNaN(b.Offset) || math.IsInf(b.Offset, 0):
		return fmt.Sprintf("offset %g must be finite", b.Offset)
	case !(b.XiIncrement > 0) || math.IsInf(b.XiIncrement, 0):
		return fmt.Sprintf("xiIncrement %g must be positive", b.XiIncrement)
	case !(b.BetaIncrement > 0) || math.IsInf(b.BetaIncrement, 0):
		return fmt.Sprintf("betaIncrement %g must be positive", b.BetaIncrement)
	case len(b.XiPoints) == 0:
		return "no xi points"
	case len(b.BetaPoints) == 0:
		return "no beta points"
	case len(b.Grid) != len(b.XiPoints):
		return fmt.Sprintf("grid has %d xi rows, want %d", len(b.Grid), len(b.XiPoints))
	}
	for i, row := range b.Grid {
		if len(row) != len(b.BetaPoints) {
			return fmt.Sprintf("grid row %d has %d beta cells, want %d", i, len(row), len(b.BetaPoints))
		}
	}
	return ""
}

// NewUniformBand builds a band whose xi axis splits [-pi, pi) into nXi cells
// and whose beta axis splits [-BetaMax, BetaMax) into nBeta cells. value is
// called once per cell with the cell's start coordinates.
func NewUniformBand(p Params, offset float64, nXi, nBeta int, value func(xi, beta float64) float64) Band {
	xiInc := 2 * math.Pi / float64(nXi)
	betaInc := 2 * p.BetaMax / float64(nBeta)

	b := Band{
		Params:        p,
		Offset:        offset,
		XiIncrement:   xiInc,
		BetaIncrement: betaInc,
		XiPoints:      make([]float64, nXi),
		BetaPoints:    make([]float64, nBeta),
		Grid:          make([][]float64, nXi),
	}
	for j := range b.BetaPoints {
		b.BetaPoints[j] = -p.BetaMax + float64(j)*betaInc
	}
	for i := range b.XiPoints {
		xi := -math.Pi + float64(i)*xiInc
		b.XiPoints[i] = xi
		row := make([]float64, nBeta)
		for j, beta := range b.BetaPoints {
			if value != nil {
				row[j] = value(xi, beta)
			}
		}
		b.Grid[i] = row
	}
	return b
}
