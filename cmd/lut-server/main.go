// Command lut-server serves deltaT queries over HTTP and, when a gRPC
// listen address is configured, over gRPC. When the table comes from the
// LUT database the tsweb debug pages and a tailsql console are
// mounted under /debug/. SIGHUP reloads the table without dropping
// connections.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/energyshield/internal/api"
	"github.com/banshee-data/energyshield/internal/config"
	"github.com/banshee-data/energyshield/internal/fsutil"
	"github.com/banshee-data/energyshield/internal/lut"
	"github.com/banshee-data/energyshield/internal/lutdb"
	"github.com/banshee-data/energyshield/internal/lutsource"
	"github.com/banshee-data/energyshield/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to service config JSON")
	listen      = flag.String("listen", "", "Listen address (overrides config)")
	grpcListen  = flag.String("grpc-listen", "", "gRPC listen address (overrides config; empty keeps gRPC off)")
	lutPath     = flag.String("lut", "", "LUT blob file (overrides config)")
	dbPath      = flag.String("db", "", "LUT database (overrides config)")
	bandRange   = flag.String("range", "", "Restrict to bands lo,hi (overrides config)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// app holds the loaded table, the API server and the database handle when
// the table lives in the LUT database.
type app struct {
	src lutsource.Source
	fs  fsutil.FileSystem
	db  *lutdb.DB
	api *api.Server
	mux *http.ServeMux
}

func newApp(ctx context.Context, src lutsource.Source, fsys fsutil.FileSystem, longDeltaTLimit float64) (*app, error) {
	a := &app{src: src, fs: fsys}
	if src.Path == "" && src.DBPath != "" {
		db, err := lutdb.Open(src.DBPath)
		if err != nil {
			return nil, err
		}
		a.db = db
	}

	tbl, err := src.Load(ctx, fsys, a.db)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load %s: %w", src, err)
	}
	a.api = api.NewServer(lut.NewResolver(tbl), src.String(), longDeltaTLimit)
	a.mux = a.api.ServeMux()

	if a.db != nil {
		if err := a.db.AttachAdminRoutes(a.mux); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// reload loads the source again and swaps it in. On failure the previous
// table keeps serving.
func (a *app) reload(ctx context.Context) error {
	tbl, err := a.src.Load(ctx, a.fs, a.db)
	if err != nil {
		return fmt.Errorf("reload of %s failed: %w", a.src, err)
	}
	a.api.Swap(lut.NewResolver(tbl), a.src.String())
	return nil
}

func (a *app) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func loadConfig() (*config.ServiceConfig, lutsource.Source, error) {
	cfg := config.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := config.LoadServiceConfig(*configPath)
		if err != nil {
			return nil, lutsource.Source{}, err
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.Listen = listen
	}
	if *grpcListen != "" {
		cfg.GRPCListen = grpcListen
	}

	src := lutsource.FromConfig(cfg)
	if *lutPath != "" {
		src.Path, src.DBPath = *lutPath, ""
	}
	if *dbPath != "" {
		src.DBPath, src.Path = *dbPath, ""
	}
	if *bandRange != "" {
		rng, err := config.ParseBandRange(*bandRange)
		if err != nil {
			return nil, lutsource.Source{}, err
		}
		src.Range = rng
	}
	return cfg, src, nil
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("lut-server"))
		return
	}

	cfg, src, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, src, fsutil.OSFileSystem{}, cfg.GetLongDeltaTLimit())
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	var wg sync.WaitGroup

	// reload on SIGHUP
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := a.reload(ctx); err != nil {
					log.Printf("%v", err)
				}
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		server := &http.Server{
			Addr:        cfg.GetListen(),
			Handler:     api.LoggingMiddleware(a.mux),
			ReadTimeout: cfg.GetReadTimeout(),
		}

		go func() {
			log.Printf("listening on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// gRPC server goroutine
	if addr := cfg.GetGRPCListen(); addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			log.Fatalf("failed to listen for gRPC on %s: %v", addr, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveGRPC(ctx, a.api, lis)
			log.Printf("gRPC server routine stopped")
		}()
	}

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// serveGRPC serves the query service on lis until ctx is done, then drains
// in-flight calls for up to a second before forcing the server down.
func serveGRPC(ctx context.Context, s *api.Server, lis net.Listener) {
	gs := api.NewGRPCServer(s)
	errc := make(chan error, 1)
	go func() {
		log.Printf("gRPC listening on %s", lis.Addr())
		errc <- gs.Serve(lis)
	}()

	select {
	case err := <-errc:
		if err != nil {
			log.Printf("gRPC server error: %v", err)
		}
		return
	case <-ctx.Done():
	}
	log.Println("shutting down gRPC server...")

	stopped := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(1 * time.Second):
		gs.Stop()
	}
}
