package lutreport

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/energyshield/internal/lut"
)

// BandSummary describes one band's grid.
type BandSummary struct {
	Index         int     `json:"index"`
	Offset        float64 `json:"offset"`
	XiCells       int     `json:"xi_cells"`
	BetaCells     int     `json:"beta_cells"`
	XiIncrement   float64 `json:"xi_increment"`
	BetaIncrement float64 `json:"beta_increment"`
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	Mean          float64 `json:"mean"`
	StdDev        float64 `json:"std_dev"`
}

// Summarize returns one summary per band in table order.
func Summarize(t *lut.Table) []BandSummary {
	out := make([]BandSummary, t.Len())
	for i := range out {
		b := t.Band(i)
		values := flatten(b.Grid)
		mean, std := stat.MeanStdDev(values, nil)
		if len(values) < 2 {
			std = 0
		}
		out[i] = BandSummary{
			Index:         i,
			Offset:        b.Offset,
			XiCells:       len(b.XiPoints),
			BetaCells:     len(b.BetaPoints),
			XiIncrement:   b.XiIncrement,
			BetaIncrement: b.BetaIncrement,
			Min:           floats.Min(values),
			Max:           floats.Max(values),
			Mean:          mean,
			StdDev:        std,
		}
	}
	return out
}

func flatten(grid [][]float64) []float64 {
	n := 0
	for _, row := range grid {
		n += len(row)
	}
	values := make([]float64, 0, n)
	for _, row := range grid {
		values = append(values, row...)
	}
	return values
}

// WriteSummary prints the shared parameters and a one-line summary per band.
func WriteSummary(w io.Writer, t *lut.Table) error {
	p := t.Params()
	if _, err := fmt.Fprintf(w, "rbar=%g sigma=%g vmax=%g lr=%g deltaFMax=%g betaMax=%g bands=%d\n",
		p.Rbar, p.Sigma, p.Vmax, p.Lr, p.DeltaFMax, p.BetaMax, t.Len()); err != nil {
		return err
	}
	for _, s := range Summarize(t) {
		if _, err := fmt.Fprintf(w, "band %3d offset=%-8g grid=%dx%d min=%.4g max=%.4g mean=%.4g std=%.4g\n",
			s.Index, s.Offset, s.XiCells, s.BetaCells, s.Min, s.Max, s.Mean, s.StdDev); err != nil {
			return err
		}
	}
	return nil
}
