package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/locationhistory/internal/api"
	"github.com/banshee-data/locationhistory/internal/config"
	"github.com/banshee-data/locationhistory/internal/fsutil"
	"github.com/banshee-data/locationhistory/internal/history"
	"github.com/banshee-data/locationhistory/internal/history/pipeline"
	"github.com/banshee-data/locationhistory/internal/monitoring"
	"github.com/banshee-data/locationhistory/internal/security"
	"github.com/banshee-data/locationhistory/internal/store"
	"github.com/banshee-data/locationhistory/internal/version"
)

// insertBatch is the number of points written per transaction.
const insertBatch = 5000

func main() {
	f, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}
	if f.version {
		fmt.Println(version.String())
		return
	}

	fsys := fsutil.OSFileSystem{}
	cfg, err := loadConfig(fsys, f)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, f, fsys); err != nil {
		log.Fatalf("%v", err)
	}
}

// quietObserver drops progress and per-record events.
type quietObserver struct{ next history.Observer }

func (q quietObserver) Observe(e history.Event) {
	switch e.Kind {
	case history.EventProgress, history.EventRecordSkipped, history.EventFormatDetected:
		return
	}
	q.next.Observe(e)
}

// run ingests the configured input, then persists, exports and serves as
// configured. A run that produced no usable outcome is returned as an error.
func run(ctx context.Context, cfg *config.IngestConfig, f *cliFlags, fsys fsutil.FileSystem) error {
	var observer history.Observer = history.LogObserver{}
	if f.quiet {
		observer = quietObserver{next: observer}
	}

	p := pipeline.New(fsys,
		pipeline.WithObserver(observer),
		pipeline.WithProgressInterval(cfg.GetProgressInterval()),
	)
	opts := cfg.Options()
	points, report := p.Extract(ctx, opts)

	sum := history.Summarize(points)
	monitoring.Infof("run %s: state=%s format=%s elements=%d points=%d skipped=%d in %v",
		report.Input, report.State, report.Format, report.Elements, report.Points, report.Skipped,
		report.Duration().Round(time.Millisecond))
	if sum.Total > 0 {
		monitoring.Infof("points by source: path=%d visit=%d activity=%d, %d with timestamps",
			sum.BySource[history.SourcePath], sum.BySource[history.SourceVisit],
			sum.BySource[history.SourceActivity], sum.WithTimestamp)
		monitoring.Infof("bounding box: lat [%.5f, %.5f] lon [%.5f, %.5f]",
			sum.MinLat, sum.MaxLat, sum.MinLon, sum.MaxLon)
	}

	var st *store.Store
	if path := cfg.GetDatabaseFile(); path != "" {
		var err error
		st, err = store.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer st.Close()
		if err := persist(ctx, st, opts, points, report); err != nil {
			return err
		}
	}

	if path := cfg.GetJSONOutputFile(); path != "" && len(points) > 0 {
		if err := exportJSON(fsys, path, points); err != nil {
			return err
		}
		monitoring.Infof("wrote %d points to %s", len(points), path)
	}

	switch report.State {
	case pipeline.StateFatal, pipeline.StateNotFound, pipeline.StateUnrecognized:
		return fmt.Errorf("ingest of %s failed (%s): %w", report.Input, report.State, report.Err)
	}

	if f.serve {
		if st == nil {
			return errors.New("-serve requires a database (-db or database_file)")
		}
		return serve(ctx, st, cfg.GetListenAddress())
	}
	return nil
}

// persist records the run and writes points in batches of insertBatch. It
// ignores cancellation of ctx so an interrupted ingest still records what it
// extracted.
func persist(ctx context.Context, st *store.Store, opts history.Options, points []history.Point, report *pipeline.Report) error {
	ctx = context.WithoutCancel(ctx)
	id, err := st.BeginRun(ctx, opts, report.StartedAt)
	if err != nil {
		return err
	}
	for start := 0; start < len(points); start += insertBatch {
		end := min(start+insertBatch, len(points))
		if err := st.InsertPoints(ctx, id, points[start:end]); err != nil {
			return err
		}
	}
	if err := st.FinishRun(ctx, id, report); err != nil {
		return err
	}
	monitoring.Infof("stored run %s in %s", id, st.Path())
	return nil
}

func exportJSON(fsys fsutil.FileSystem, path string, points []history.Point) error {
	if err := security.ValidateExportPath(path); err != nil {
		return fmt.Errorf("refusing to write %s: %w", path, err)
	}
	w, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := history.WriteJSON(w, points); err != nil {
		w.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// serve runs the API and admin routes until ctx is cancelled.
func serve(ctx context.Context, st *store.Store, addr string) error {
	mux := api.NewServer(st).ServeMux()
	if err := st.AttachAdminRoutes(mux); err != nil {
		return err
	}

	server := &http.Server{
		Addr:    addr,
		Handler: api.LoggingMiddleware(mux),
	}

	errc := make(chan error, 1)
	go func() {
		monitoring.Infof("serving runs API on http://%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	return nil
}
