package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/ride.report/internal/analysis"
	"github.com/banshee-data/ride.report/internal/api"
	"github.com/banshee-data/ride.report/internal/db"
	"github.com/banshee-data/ride.report/internal/monitoring"
	"github.com/banshee-data/ride.report/internal/report"
)

func handleAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	noStore := fs.Bool("no-store", false, "Do not save the ride to the database")
	noPublish := fs.Bool("no-publish", false, "Do not publish critical events to Kafka")
	reportDir := fs.String("report-dir", "", "Report directory (overrides report.dir)")
	asJSON := fs.Bool("json", false, "Print the full outcome as JSON")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("usage: ride-report analyze [options] <video>")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts := serviceOptions{Publish: !*noPublish, ReportDir: cfg.Report.Dir}
	if *reportDir != "" {
		opts.ReportDir = *reportDir
	}
	if !*noStore {
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.Store = store
	}

	svc, cleanup, err := newService(cfg, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out, err := svc.Analyze(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	return printOutcome(os.Stdout, out)
}

// printOutcome writes the console digest for one analysis.
func printOutcome(w io.Writer, out *analysis.Outcome) error {
	fmt.Fprintf(w, "Ride %s\n", out.RideID)
	if err := report.Summary(w, out.Result); err != nil {
		return err
	}
	fmt.Fprintf(w, "Rider Style: %s\n", out.Result.RiderStyle)
	if out.Reports != nil {
		fmt.Fprintf(w, "Report: %s\n", out.Reports.Text)
	}
	if out.Published > 0 {
		fmt.Fprintf(w, "Published %d critical events\n", out.Published)
	}
	for _, warning := range out.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	return nil
}

func handleRuns(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Number of rides to list")
	fs.Parse(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	rides, err := store.ListRides(context.Background(), *limit)
	if err != nil {
		return err
	}
	return printRides(os.Stdout, rides)
}

// printRides writes rides as an aligned table.
func printRides(w io.Writer, rides []db.Ride) error {
	if len(rides) == 0 {
		_, err := fmt.Fprintln(w, "No rides stored.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tVERDICT\tSTYLE\tRISK\tSAMPLES\tCRITICAL\tVIDEO")
	for _, r := range rides {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.1f%%\t%d\t%d\t%s\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.Verdict, r.RiderStyle,
			r.RiskPercentage, r.TotalSamples, r.CriticalFrames, r.VideoPath)
	}
	return tw.Flush()
}

func handleServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	listen := fs.String("listen", "", "Listen address (overrides http.listen)")
	fs.Parse(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := cfg.HTTP.Listen
	if *listen != "" {
		addr = *listen
	}
	if addr == "" {
		return errors.New("listen address is required")
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var analyzer api.Analyzer
	if len(cfg.HTTP.MediaDirs) > 0 {
		svc, cleanup, err := newService(cfg, serviceOptions{Store: store, Publish: true, ReportDir: cfg.Report.Dir})
		if err != nil {
			return err
		}
		defer cleanup()
		analyzer = svc
	} else {
		monitoring.Logf("http.media_dirs is empty; POST /api/analyze is disabled")
	}

	handler, err := api.NewServer(store, analyzer, cfg.HTTP.MediaDirs).Handler(store.AttachAdminRoutes)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitoring.Logf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
	}
	wg.Wait()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
	}
	monitoring.Logf("graceful shutdown complete")
	return nil
}
