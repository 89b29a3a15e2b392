package lut

import "math"

// Params holds the problem parameters every band in a table was built with.
type Params struct {
	Rbar      float64 `json:"rbar"`
	Sigma     float64 `json:"sigma"`
	Vmax      float64 `json:"vmax"` // maximum speed, used by the outer-band bound
	Lr        float64 `json:"lr"`
	DeltaFMax float64 `json:"deltaFMax"`
	BetaMax   float64 `json:"betaMax"` // bounds the beta axis to [-BetaMax, BetaMax]
}

// paramNames lists the shared parameters in validation order.
var paramNames = []string{"rbar", "sigma", "vmax", "lr", "deltaFMax", "betaMax"}

// value returns the named parameter. Unknown names yield NaN.
func (p Params) value(name string) float64 {
	switch name {
	case "rbar":
		return p.Rbar
	case "sigma":
		return p.Sigma
	case "vmax":
		return p.Vmax
	case "lr":
		return p.Lr
	case "deltaFMax":
		return p.DeltaFMax
	case "betaMax":
		return p.BetaMax
	}
	return math.NaN()
}

// firstDifference returns the name of the first parameter whose value differs
// between p and o, or "" when all six are exactly equal.
func (p Params) firstDifference(o Params) string {
	for _, name := range paramNames {
		if p.value(name) != o.value(name) {
			return name
		}
	}
	return ""
}

// firstNonFinite returns the name of the first parameter that is NaN or
// infinite, or "" when all six are finite.
func (p Params) firstNonFinite() string {
	for _, name := range paramNames {
		if v := p.value(name); math.IsNaN(v) || math.IsInf(v, 0) {
			return name
		}
	}
	return ""
}

// Rmin is the minimum feasible radius at phase xi:
//
//	rbar / (sigma*cos(xi/2) + 1 - sigma)
//
// The denominator is assumed non-zero on [-pi, pi]; a well-formed table
// guarantees it and it is not re-checked here.
func (p Params) Rmin(xi float64) float64 {
	return p.Rbar / (p.Sigma*math.Cos(xi/2) + 1 - p.Sigma)
}
