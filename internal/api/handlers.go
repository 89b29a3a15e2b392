package api

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/banshee-data/energyshield/internal/httputil"
	"github.com/banshee-data/energyshield/internal/lut"
	"github.com/banshee-data/energyshield/internal/lutreport"
)

// LUTInfo is the /api/lut response.
type LUTInfo struct {
	Source  string                  `json:"source"`
	Params  lut.Params              `json:"params"`
	Offsets []float64               `json:"offsets"`
	Bands   []lutreport.BandSummary `json:"bands"`
}

func (s *Server) handleDeltaT(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	if r.URL.Query().Get("r") == "" {
		httputil.WriteParamError(w, "r", "missing required parameter")
		return
	}

	q := lut.Query{}
	for _, p := range []struct {
		name string
		dst  *float64
		def  float64
	}{
		{"r", &q.R, 0},
		{"xi", &q.Xi, 0},
		{"beta", &q.Beta, 0},
		{"limit", &q.LongDeltaTLimit, s.LongDeltaTLimit},
	} {
		v, err := httputil.QueryFloat(r, p.name, p.def)
		if err != nil {
			httputil.WriteParamError(w, p.name, fmt.Sprintf("invalid number %q", r.URL.Query().Get(p.name)))
			return
		}
		*p.dst = v
	}
	if math.IsNaN(q.R) || math.IsInf(q.R, 0) {
		httputil.WriteParamError(w, "r", "r must be finite")
		return
	}
	debug, err := httputil.QueryBool(r, "debug")
	if err != nil {
		httputil.WriteParamError(w, "debug", "invalid boolean")
		return
	}
	q.Debug = debug

	resolver, _ := s.current()
	res, err := resolver.Resolve(q)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	httputil.WriteJSONOK(w, res)
}

func writeResolveError(w http.ResponseWriter, err error) {
	var oor *lut.OutOfRangeError
	switch {
	case errors.As(err, &oor):
		httputil.WriteParamError(w, oor.Param, err.Error())
	case errors.Is(err, lut.ErrInternalIndex):
		log.Printf("[api] table indexing failed: %v", err)
		httputil.InternalServerError(w, err.Error())
	default:
		log.Printf("[api] resolve failed: %v", err)
		httputil.InternalServerError(w, err.Error())
	}
}

func (s *Server) handleLUT(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.info())
}

// info describes the installed table.
func (s *Server) info() LUTInfo {
	resolver, source := s.current()
	t := resolver.Table()
	return LUTInfo{
		Source:  source,
		Params:  t.Params(),
		Offsets: t.Offsets(),
		Bands:   lutreport.Summarize(t),
	}
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	resolver, _ := s.current()
	t := resolver.Table()

	band := 0
	if v := r.URL.Query().Get("band"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			httputil.WriteParamError(w, "band", fmt.Sprintf("invalid band %q", v))
			return
		}
		band = n
	}
	if band < 0 || band >= t.Len() {
		httputil.NotFound(w, fmt.Sprintf("band %d not in table of %d bands", band, t.Len()))
		return
	}

	httputil.WriteHTML(w, func(out io.Writer) error {
		return lutreport.RenderBandHeatmap(out, t, band)
	})
}
