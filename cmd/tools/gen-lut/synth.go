package main

import (
	"fmt"
	"math"

	"github.com/banshee-data/energyshield/internal/lut"
)

type synthSpec struct {
	Params     lut.Params
	Bands      int
	OffsetStep float64
	XiCells    int
	BetaCells  int
}

func defaultSynthSpec() synthSpec {
	return synthSpec{
		Params:     lut.Params{Rbar: 10, Sigma: 0.3, Vmax: 3, Lr: 0.5, DeltaFMax: 1, BetaMax: 1.2},
		Bands:      6,
		OffsetStep: 2,
		XiCells:    64,
		BetaCells:  32,
	}
}

// synthBands builds Bands bands at offsets 0, OffsetStep, 2*OffsetStep...
// Band k holds (k+1)*OffsetStep/Vmax scaled down away from xi=0 and
// towards |beta|=BetaMax, so values grow with offset and peak head-on.
func synthBands(s synthSpec) ([]lut.Band, error) {
	switch {
	case s.Bands < 1:
		return nil, fmt.Errorf("bands must be at least 1, got %d", s.Bands)
	case s.XiCells < 1 || s.BetaCells < 1:
		return nil, fmt.Errorf("grid must have at least one cell per axis, got %dx%d", s.XiCells, s.BetaCells)
	case !(s.OffsetStep > 0):
		return nil, fmt.Errorf("offset-step must be positive, got %g", s.OffsetStep)
	case !(s.Params.Vmax > 0) || !(s.Params.BetaMax > 0):
		return nil, fmt.Errorf("vmax and betamax must be positive")
	case !(s.Params.Rbar > 0) || s.Params.Sigma < 0 || s.Params.Sigma >= 1:
		return nil, fmt.Errorf("rbar must be positive and sigma in [0, 1)")
	}

	p := s.Params
	bands := make([]lut.Band, s.Bands)
	for k := range bands {
		peak := float64(k+1) * s.OffsetStep / p.Vmax
		bands[k] = lut.NewUniformBand(p, float64(k)*s.OffsetStep, s.XiCells, s.BetaCells, func(xi, beta float64) float64 {
			b := beta / p.BetaMax
			return peak * (0.5 + 0.5*math.Cos(xi/2)) * (1 - 0.5*b*b)
		})
	}
	return bands, nil
}
