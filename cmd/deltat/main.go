// Command deltat resolves a single deltaT query against a lookup table
// loaded from a blob file, the LUT database, or a running lut-server over
// HTTP or gRPC.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/banshee-data/energyshield/internal/api"
	"github.com/banshee-data/energyshield/internal/config"
	"github.com/banshee-data/energyshield/internal/fsutil"
	"github.com/banshee-data/energyshield/internal/lut"
	"github.com/banshee-data/energyshield/internal/lutsource"
	"github.com/banshee-data/energyshield/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Printf("deltat: %v", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	lutPath    string
	dbPath     string
	tableID    string
	name       string
	bandRange  string
	server     string
	grpcTarget string

	query   lut.Query
	asJSON  bool
	version bool
}

func parseFlags(args []string, stderr io.Writer) (*options, map[string]bool, error) {
	o := &options{}
	fs := flag.NewFlagSet("deltat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "Path to service config JSON")
	fs.StringVar(&o.lutPath, "lut", "", "LUT blob file")
	fs.StringVar(&o.dbPath, "db", "", "LUT database (sqlite)")
	fs.StringVar(&o.tableID, "id", "", "Table id in the LUT database (default latest)")
	fs.StringVar(&o.name, "name", "", "Restrict the latest table lookup to this name")
	fs.StringVar(&o.bandRange, "range", "", "Restrict to bands lo,hi (half-open)")
	fs.StringVar(&o.server, "server", "", "Query a running lut-server at this base URL instead of loading a table")
	fs.StringVar(&o.grpcTarget, "grpc", "", "Query a running lut-server's gRPC endpoint (host:port) instead of loading a table")
	fs.Float64Var(&o.query.R, "r", 0, "Current range r")
	fs.Float64Var(&o.query.Xi, "xi", 0, "Phase xi in [-pi, pi]")
	fs.Float64Var(&o.query.Beta, "beta", 0, "Angle beta in [-betaMax, betaMax]")
	fs.Float64Var(&o.query.LongDeltaTLimit, "limit", 0, "Cap on the extrapolated deltaT for the last band")
	fs.BoolVar(&o.query.Debug, "debug", false, "Log band selection and cell intervals")
	fs.BoolVar(&o.asJSON, "json", false, "Print the full result as JSON")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() > 0 {
		return nil, nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if o.server != "" && o.grpcTarget != "" {
		return nil, nil, errors.New("-server and -grpc are mutually exclusive")
	}
	if remote := o.remoteFlag(); remote != "" {
		var local []string
		for _, name := range sourceFlags {
			if set[name] {
				local = append(local, "-"+name)
			}
		}
		if len(local) > 0 {
			return nil, nil, fmt.Errorf("%s cannot be combined with %s: the server owns its table",
				remote, strings.Join(local, ", "))
		}
	}
	return o, set, nil
}

// sourceFlags select the local table and have no meaning for a remote query.
var sourceFlags = []string{"lut", "db", "id", "name", "range"}

func (o *options) remoteFlag() string {
	switch {
	case o.server != "":
		return "-server"
	case o.grpcTarget != "":
		return "-grpc"
	}
	return ""
}

// source merges the config file with flags; flags given on the command
// line win.
func (o *options) source(set map[string]bool) (lutsource.Source, error) {
	cfg := config.DefaultServiceConfig()
	if o.configPath != "" {
		loaded, err := config.LoadServiceConfig(o.configPath)
		if err != nil {
			return lutsource.Source{}, err
		}
		cfg = loaded
	}
	src := lutsource.FromConfig(cfg)

	if set["lut"] {
		src.Path, src.DBPath = o.lutPath, ""
	}
	if set["db"] {
		src.DBPath, src.Path = o.dbPath, ""
	}
	if set["id"] {
		src.TableID = o.tableID
	}
	if set["name"] {
		src.Name = o.name
	}
	if set["range"] {
		rng, err := config.ParseBandRange(o.bandRange)
		if err != nil {
			return lutsource.Source{}, err
		}
		src.Range = rng
	}
	if !set["limit"] {
		o.query.LongDeltaTLimit = cfg.GetLongDeltaTLimit()
	}
	if !set["debug"] {
		o.query.Debug = cfg.GetDebug()
	}
	return src, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	o, set, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	if o.version {
		fmt.Fprintln(stdout, version.String("deltat"))
		return nil
	}

	src, err := o.source(set)
	if err != nil {
		return err
	}

	var res lut.Result
	switch {
	case o.server != "":
		res, err = api.NewClient(o.server, nil).Resolve(ctx, o.query)
	case o.grpcTarget != "":
		var c *api.GRPCClient
		c, err = api.NewGRPCClient(o.grpcTarget)
		if err != nil {
			return err
		}
		defer c.Close()
		res, err = c.Resolve(ctx, o.query)
	default:
		var tbl *lut.Table
		tbl, err = src.Load(ctx, fsutil.OSFileSystem{}, nil)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", src, err)
		}
		res, err = lut.NewResolver(tbl).Resolve(o.query)
	}
	if err != nil {
		return err
	}
	return printResult(stdout, res, o.asJSON)
}

func printResult(w io.Writer, res lut.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if res.Band < 0 {
		_, err := fmt.Fprintf(w, "deltaT = %g (no band applies)\n", res.DeltaT)
		return err
	}
	suffix := ""
	if res.Extrapolated {
		suffix = " (velocity bound)"
	}
	_, err := fmt.Fprintf(w, "deltaT = %g%s band=%d offset=%g cell=[%d,%d]\n",
		res.DeltaT, suffix, res.Band, res.Offset, res.XiIndex, res.BetaIndex)
	return err
}
