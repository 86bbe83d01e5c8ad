// Command gamic2iwrf transcodes GAMIC receiver IQ files into IWRF time
// series files.
//
// Inputs come from an archive directory scan, a list of files on the
// command line, or a realtime watch of a directory. Settings are read from
// a JSON or YAML config file; the flags below override it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/gamic2iwrf/internal/config"
	"github.com/banshee-data/gamic2iwrf/internal/monitoring"
	"github.com/banshee-data/gamic2iwrf/internal/pipeline"
	"github.com/banshee-data/gamic2iwrf/internal/version"
)

var (
	configPath      = flag.String("config", "", "Path to a JSON or YAML config file")
	mode            = flag.String("mode", "", "Run mode: archive, filelist or realtime (default from config)")
	inputDir        = flag.String("input-dir", "", "Directory to scan or watch for input files")
	outputDir       = flag.String("output-dir", "", "Root directory for output files")
	archiveStart    = flag.String("start", "", "Archive mode: earliest input modification time (RFC3339)")
	archiveEnd      = flag.String("end", "", "Archive mode: latest input modification time (RFC3339)")
	encoding        = flag.String("encoding", "", "IQ encoding: fl32, scaled_si16, dbm_phase_si16 or sigmet_fl16")
	catalogPath     = flag.String("catalog", "", "Path to the SQLite file catalog (empty disables)")
	metricsTextfile = flag.String("metrics-textfile", "", "Write Prometheus metrics to this file after each input")
	resetState      = flag.Bool("reset-state", false, "Reset PRT and burst phase state at the start of each input file")
	diag            = flag.Bool("diag", false, "Log per-file diagnostics to stderr")
	trace           = flag.Bool("trace", false, "Log per-pulse telemetry to stderr")
	showVersion     = flag.Bool("version", false, "Print version and exit")
)

// applyFlags copies the explicitly set flags over cfg. Positional file
// arguments select filelist mode unless a mode was given.
func applyFlags(cfg *config.Config, set map[string]bool, args []string) error {
	str := func(name string, v *string, dst **string) {
		if set[name] {
			s := *v
			*dst = &s
		}
	}
	str("mode", mode, &cfg.Mode)
	str("input-dir", inputDir, &cfg.InputDir)
	str("output-dir", outputDir, &cfg.OutputDir)
	str("start", archiveStart, &cfg.ArchiveStart)
	str("end", archiveEnd, &cfg.ArchiveEnd)
	str("encoding", encoding, &cfg.IQEncoding)
	str("catalog", catalogPath, &cfg.CatalogDBPath)
	str("metrics-textfile", metricsTextfile, &cfg.MetricsTextfile)
	if set["reset-state"] {
		b := *resetState
		cfg.ResetStatePerFile = &b
	}
	if len(args) > 0 && !set["mode"] {
		m := config.ModeFilelist
		cfg.Mode = &m
	}
	if cfg.GetMode() == config.ModeFilelist && len(args) == 0 {
		return errors.New("filelist mode needs input files as arguments")
	}
	return cfg.Validate()
}

func loadConfig() (*config.Config, error) {
	if *configPath == "" {
		return config.Empty(), nil
	}
	return config.Load(*configPath)
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [input files...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	var diagW, traceW io.Writer
	if *diag {
		diagW = os.Stderr
	}
	if *trace {
		traceW = os.Stderr
	}
	monitoring.SetLogWriters(os.Stderr, diagW, traceW)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if err := applyFlags(cfg, set, flag.Args()); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run, err := pipeline.NewRun(ctx, cfg, pipeline.Env{Files: flag.Args()})
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	err = run.Execute(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		log.Printf("interrupted, run %s stopped", run.ID)
	default:
		log.Printf("run %s failed: %v", run.ID, err)
		os.Exit(1)
	}
}
