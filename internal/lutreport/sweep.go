package lutreport

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/energyshield/internal/fsutil"
	"github.com/banshee-data/energyshield/internal/lut"
)

// SweepPoint is deltaT at one range along a sweep.
type SweepPoint struct {
	R            float64 `json:"r"`
	DeltaT       float64 `json:"delta_t"`
	Band         int     `json:"band"`
	Extrapolated bool    `json:"extrapolated"`
}

// SweepSpec fixes the phase and angle of a sweep over r in [RFrom, RTo].
type SweepSpec struct {
	Xi              float64
	Beta            float64
	LongDeltaTLimit float64
	RFrom           float64
	RTo             float64
	Steps           int
}

// Sweep resolves Steps evenly spaced ranges from RFrom to RTo inclusive.
func Sweep(r *lut.Resolver, spec SweepSpec) ([]SweepPoint, error) {
	if spec.Steps < 2 {
		return nil, fmt.Errorf("sweep needs at least 2 steps, got %d", spec.Steps)
	}
	if !(spec.RTo > spec.RFrom) {
		return nil, fmt.Errorf("sweep range [%g, %g] is empty", spec.RFrom, spec.RTo)
	}

	rs := floats.Span(make([]float64, spec.Steps), spec.RFrom, spec.RTo)
	out := make([]SweepPoint, len(rs))
	for i, rr := range rs {
		res, err := r.Resolve(lut.Query{R: rr, Xi: spec.Xi, Beta: spec.Beta, LongDeltaTLimit: spec.LongDeltaTLimit})
		if err != nil {
			return nil, fmt.Errorf("r=%g: %w", rr, err)
		}
		out[i] = SweepPoint{R: rr, DeltaT: res.DeltaT, Band: res.Band, Extrapolated: res.Extrapolated}
	}
	return out, nil
}

// WriteSweepPlot renders points as a PNG line plot at path. Extrapolated
// points are overlaid as markers.
func WriteSweepPlot(fsys fsutil.FileSystem, points []SweepPoint, path, title string) error {
	if len(points) == 0 {
		return fmt.Errorf("no sweep points to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "r"
	p.Y.Label.Text = "deltaT"

	all := make(plotter.XYs, len(points))
	var extrap plotter.XYs
	for i, pt := range points {
		all[i] = plotter.XY{X: pt.R, Y: pt.DeltaT}
		if pt.Extrapolated {
			extrap = append(extrap, plotter.XY{X: pt.R, Y: pt.DeltaT})
		}
	}

	line, err := plotter.NewLine(all)
	if err != nil {
		return fmt.Errorf("failed to build sweep line: %w", err)
	}
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(line)
	p.Legend.Add("deltaT", line)

	if len(extrap) > 0 {
		sc, err := plotter.NewScatter(extrap)
		if err != nil {
			return fmt.Errorf("failed to build extrapolation markers: %w", err)
		}
		sc.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		p.Add(sc)
		p.Legend.Add("velocity bound", sc)
	}

	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to render sweep plot: %w", err)
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
