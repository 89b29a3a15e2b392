// Package testutil provides shared fixtures for tests that sit above the
// lut package: canonical tables and HTTP round-trip helpers.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/energyshield/internal/lut"
)

// Params returns the shared parameter set used by test tables.
// rmin(0) = 1 and rmin(pi) = 2.
func Params() lut.Params {
	return lut.Params{Rbar: 1.0, Sigma: 0.5, Vmax: 2.0, Lr: 0.1, DeltaFMax: 0.5, BetaMax: 1.0}
}

// ConstBand returns an 8x4 band holding v in every cell.
func ConstBand(offset, v float64) lut.Band {
	return lut.NewUniformBand(Params(), offset, 8, 4, func(_, _ float64) float64 { return v })
}

// TwoBandBands returns bands at offsets 0 and 5 holding 3 and 7.
func TwoBandBands() []lut.Band {
	return []lut.Band{ConstBand(0, 3), ConstBand(5, 7)}
}

// TwoBandTable builds the table from TwoBandBands.
func TwoBandTable(t *testing.T) *lut.Table {
	t.Helper()
	tbl, err := lut.NewTable(TwoBandBands(), nil)
	if err != nil {
		t.Fatalf("failed to build test table: %v", err)
	}
	return tbl
}

// QuietResolver returns a resolver whose trace output is discarded.
func QuietResolver(tbl *lut.Table) *lut.Resolver {
	r := lut.NewResolver(tbl)
	r.SetLogger(func(string, ...interface{}) {})
	return r
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// ServeJSON sends a GET for path through h and decodes the JSON body into
// out when out is non-nil. It returns the recorder for further checks.
func ServeJSON(t *testing.T, h http.Handler, path string, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode %s response: %v", path, err)
		}
	}
	return rec
}
