// Command gen-lut writes a synthetic deltaT lookup table for testing the
// resolver and server. The table can also be imported into the LUT
// database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"

	"github.com/banshee-data/energyshield/internal/fsutil"
	"github.com/banshee-data/energyshield/internal/lut"
	"github.com/banshee-data/energyshield/internal/lutdb"
	"github.com/banshee-data/energyshield/internal/version"
)

func main() {
	output := flag.String("o", "synthetic.lut", "output path")
	dbPath := flag.String("db", "", "also import the table into this LUT database")
	name := flag.String("name", "synthetic", "table name used for the database import")
	format := flag.String("format", "gob", "blob format: gob or wire")
	force := flag.Bool("force", false, "overwrite an existing output file")
	showVersion := flag.Bool("version", false, "print version and exit")

	spec := defaultSynthSpec()
	flag.IntVar(&spec.Bands, "bands", spec.Bands, "number of bands")
	flag.Float64Var(&spec.OffsetStep, "offset-step", spec.OffsetStep, "distance between band offsets")
	flag.IntVar(&spec.XiCells, "xi-cells", spec.XiCells, "grid cells along xi")
	flag.IntVar(&spec.BetaCells, "beta-cells", spec.BetaCells, "grid cells along beta")
	flag.Float64Var(&spec.Params.Rbar, "rbar", spec.Params.Rbar, "rbar")
	flag.Float64Var(&spec.Params.Sigma, "sigma", spec.Params.Sigma, "sigma")
	flag.Float64Var(&spec.Params.Vmax, "vmax", spec.Params.Vmax, "vmax")
	flag.Float64Var(&spec.Params.Lr, "lr", spec.Params.Lr, "lr")
	flag.Float64Var(&spec.Params.DeltaFMax, "dfmax", spec.Params.DeltaFMax, "deltaFMax")
	flag.Float64Var(&spec.Params.BetaMax, "betamax", spec.Params.BetaMax, "betaMax")
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("gen-lut"))
		return
	}

	bands, err := synthBands(spec)
	if err != nil {
		log.Fatalf("invalid generator settings: %v", err)
	}

	fsys := fsutil.OSFileSystem{}
	if err := writeTable(fsys, *output, bands, *format, *force); err != nil {
		log.Fatalf("failed to write %s: %v", *output, err)
	}
	log.Printf("✓ Created: %s (%s, %d bands, %dx%d cells)", *output, *format, spec.Bands, spec.XiCells, spec.BetaCells)

	if *dbPath != "" {
		db, err := lutdb.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open %s: %v", *dbPath, err)
		}
		defer db.Close()
		rec, err := db.SaveTable(context.Background(), *name, *output, bands)
		if err != nil {
			log.Fatalf("failed to import table: %v", err)
		}
		log.Printf("✓ Imported as %s (%s)", rec.ID, rec.Name)
	}
}

var errOutputExists = errors.New("output exists (use -force to overwrite)")

// writeTable encodes bands in the named format and writes them to path.
func writeTable(fsys fsutil.FileSystem, path string, bands []lut.Band, format string, force bool) error {
	var encode func(io.Writer, []lut.Band) error
	switch format {
	case "gob":
		encode = lut.Encode
	case "wire":
		encode = lut.EncodeWire
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	if !force && fsys.Exists(path) {
		return errOutputExists
	}
	return fsutil.WriteAtomic(fsys, path, func(w io.Writer) error {
		return encode(w, bands)
	})
}
