package lutreport

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/energyshield/internal/lut"
)

// AssetsHost is where rendered pages load the echarts scripts from. Set it
// to a locally served path for offline use.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// BandHeatmap builds a heatmap of one band's grid with xi along the x axis
// and beta along the y axis.
func BandHeatmap(t *lut.Table, band int) (*charts.HeatMap, error) {
	if band < 0 || band >= t.Len() {
		return nil, fmt.Errorf("band %d out of range [0, %d)", band, t.Len())
	}
	b := t.Band(band)

	xiLabels := make([]string, len(b.XiPoints))
	for i, x := range b.XiPoints {
		xiLabels[i] = strconv.FormatFloat(x, 'g', 4, 64)
	}
	betaLabels := make([]string, len(b.BetaPoints))
	for j, y := range b.BetaPoints {
		betaLabels[j] = strconv.FormatFloat(y, 'g', 4, 64)
	}

	values := flatten(b.Grid)
	data := make([]opts.HeatMapData, 0, len(values))
	for i, row := range b.Grid {
		for j, v := range row {
			data = append(data, opts.HeatMapData{Value: [3]interface{}{i, j, v}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "deltaT band heatmap", Theme: "dark", Width: "900px", Height: "700px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Band %d", band), Subtitle: fmt.Sprintf("offset=%g grid=%dx%d", b.Offset, len(b.XiPoints), len(b.BetaPoints))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xiLabels, Name: "xi", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: betaLabels, Name: "beta", NameLocation: "middle", NameGap: 40}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(floats.Min(values)),
			Max:        float32(floats.Max(values)),
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.AddSeries("deltaT", data)
	return hm, nil
}

// RenderBandHeatmap writes the band heatmap as a standalone HTML page.
func RenderBandHeatmap(w io.Writer, t *lut.Table, band int) error {
	hm, err := BandHeatmap(t, band)
	if err != nil {
		return err
	}
	return hm.Render(w)
}
