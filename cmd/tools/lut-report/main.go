// Command lut-report prints per-band statistics for a lookup table and can
// render a deltaT sweep along r as PNG and a band heatmap as HTML.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/energyshield/internal/config"
	"github.com/banshee-data/energyshield/internal/fsutil"
	"github.com/banshee-data/energyshield/internal/lut"
	"github.com/banshee-data/energyshield/internal/lutreport"
	"github.com/banshee-data/energyshield/internal/lutsource"
	"github.com/banshee-data/energyshield/internal/monitoring"
	"github.com/banshee-data/energyshield/internal/version"
)

type reportOptions struct {
	src lutsource.Source

	sweepPNG string
	sweep    lutreport.SweepSpec

	heatmapHTML string
	band        int
}

func main() {
	var o reportOptions
	var bandRange string
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.StringVar(&o.src.Path, "lut", "", "LUT blob file")
	flag.StringVar(&o.src.DBPath, "db", "", "LUT database")
	flag.StringVar(&o.src.TableID, "id", "", "table id in the LUT database (default latest)")
	flag.StringVar(&o.src.Name, "name", "", "restrict the latest table lookup to this name")
	flag.StringVar(&bandRange, "range", "", "restrict to bands lo,hi")
	flag.StringVar(&o.sweepPNG, "sweep-png", "", "write a deltaT sweep plot to this PNG")
	flag.Float64Var(&o.sweep.Xi, "xi", 0, "sweep phase xi")
	flag.Float64Var(&o.sweep.Beta, "beta", 0, "sweep angle beta")
	flag.Float64Var(&o.sweep.LongDeltaTLimit, "limit", 0, "sweep long deltaT limit")
	flag.Float64Var(&o.sweep.RFrom, "r-from", 0, "sweep start range")
	flag.Float64Var(&o.sweep.RTo, "r-to", 0, "sweep end range (default: last threshold + 10)")
	flag.IntVar(&o.sweep.Steps, "steps", 200, "sweep samples")
	flag.StringVar(&o.heatmapHTML, "heatmap", "", "write a band heatmap to this HTML file")
	flag.IntVar(&o.band, "band", 0, "band index for -heatmap")
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("lut-report"))
		return
	}

	rng, err := config.ParseBandRange(bandRange)
	if err != nil {
		log.Fatalf("%v", err)
	}
	o.src.Range = rng

	monitoring.SetLogger(nil)
	if err := report(context.Background(), o, fsutil.OSFileSystem{}, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

func report(ctx context.Context, o reportOptions, fsys fsutil.FileSystem, stdout io.Writer) error {
	tbl, err := o.src.Load(ctx, fsys, nil)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", o.src, err)
	}
	if err := lutreport.WriteSummary(stdout, tbl); err != nil {
		return err
	}

	if o.sweepPNG != "" {
		spec := o.sweep
		if spec.RTo == 0 {
			offsets := tbl.Offsets()
			spec.RTo = tbl.Rmin(spec.Xi) + offsets[len(offsets)-1] + 10
		}
		points, err := lutreport.Sweep(lut.NewResolver(tbl), spec)
		if err != nil {
			return err
		}
		title := fmt.Sprintf("deltaT at xi=%g beta=%g", spec.Xi, spec.Beta)
		if err := lutreport.WriteSweepPlot(fsys, points, o.sweepPNG, title); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s (%d points)\n", o.sweepPNG, len(points))
	}

	if o.heatmapHTML != "" {
		err := fsutil.WriteAtomic(fsys, o.heatmapHTML, func(w io.Writer) error {
			return lutreport.RenderBandHeatmap(w, tbl, o.band)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s (band %d)\n", o.heatmapHTML, o.band)
	}
	return nil
}
