package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/gamic2iwrf/internal/catalog"
	"github.com/banshee-data/gamic2iwrf/internal/config"
	"github.com/banshee-data/gamic2iwrf/internal/discovery"
	"github.com/banshee-data/gamic2iwrf/internal/fsutil"
	"github.com/banshee-data/gamic2iwrf/internal/ldata"
	"github.com/banshee-data/gamic2iwrf/internal/metrics"
	"github.com/banshee-data/gamic2iwrf/internal/monitoring"
	"github.com/banshee-data/gamic2iwrf/internal/output"
	"github.com/banshee-data/gamic2iwrf/internal/timeutil"
	"github.com/banshee-data/gamic2iwrf/internal/transcode"
	"github.com/banshee-data/gamic2iwrf/internal/version"
)

// AppName is recorded as the writer of the latest data info files.
const AppName = "gamic2iwrf"

// DataType is recorded as the data type of the latest data info files.
const DataType = "iwrf_ts"

// Env carries what a Run needs beyond the configuration.
type Env struct {
	FS    fsutil.FileSystem
	Clock timeutil.Clock
	// Files lists the inputs for filelist mode.
	Files []string
	// Liveness, when non-nil, is called on every realtime wait cycle.
	Liveness discovery.Liveness
}

// Run is one configured transcoder invocation.
type Run struct {
	ID      string
	Driver  *Driver
	Metrics *metrics.Metrics

	cfg     *config.Config
	env     Env
	catalog *catalog.Catalog
}

// NewRun wires a Driver from cfg: the builder, the output manager with its
// indexers, the discovery source for the configured mode, metrics and,
// when configured, the catalog.
func NewRun(ctx context.Context, cfg *config.Config, env Env) (*Run, error) {
	if env.FS == nil {
		env.FS = fsutil.OSFileSystem{}
	}
	if env.Clock == nil {
		env.Clock = timeutil.RealClock{}
	}

	r := &Run{
		ID:      uuid.NewString(),
		Metrics: metrics.New(),
		cfg:     cfg,
		env:     env,
	}
	r.Metrics.BuildInfo.WithLabelValues(version.Version, version.GitSHA).Set(1)

	outDir := cfg.GetOutputDir()
	var indexers []output.Indexer
	if cfg.GetWriteLatestDataInfo() {
		indexers = append(indexers, &ldata.Writer{
			FS:       env.FS,
			Dir:      outDir,
			App:      AppName,
			DataType: DataType,
			RunID:    r.ID,
		})
	}
	if path := cfg.GetCatalogDBPath(); path != "" {
		c, err := catalog.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open catalog: %w", err)
		}
		err = c.StartRun(ctx, catalog.Run{
			ID:        r.ID,
			StartedAt: env.Clock.Now(),
			Version:   version.String(),
			Mode:      cfg.GetMode(),
			OutputDir: outDir,
		})
		if err != nil {
			c.Close()
			return nil, err
		}
		r.catalog = c
		indexers = append(indexers, c)
	}

	src, err := newSource(cfg, env, r.liveness)
	if err != nil {
		r.closeCatalog()
		return nil, err
	}

	lat, lon, alt := cfg.Location()
	builder := transcode.NewBuilder(transcode.Options{
		RadarID:      int32(cfg.GetRadarID()),
		RadarName:    cfg.GetRadarName(),
		SiteName:     cfg.GetSiteName(),
		LatitudeDeg:  lat,
		LongitudeDeg: lon,
		AltitudeM:    alt,
		Encoding:     cfg.GetIQEncoding(),
		Gains:        cfg.Gains(),
		Site:         cfg.Site(),
	})
	mgr := output.NewManager(output.Config{
		Root:             outDir,
		Format:           cfg.GetOutputFormat(),
		MetadataInterval: cfg.GetMetadataIntervalPulses(),
		FS:               env.FS,
		Clock:            env.Clock,
		Indexers:         indexers,
	})

	r.Driver = NewDriver(Config{
		Source:            src,
		Builder:           builder,
		Output:            mgr,
		FS:                env.FS,
		Clock:             env.Clock,
		ResetStatePerFile: cfg.GetResetStatePerFile(),
		Metrics:           r.Metrics,
		MetricsTextfile:   cfg.GetMetricsTextfile(),
	})
	monitoring.Opsf("run %s: mode=%s input=%s output=%s", r.ID, cfg.GetMode(), cfg.GetInputDir(), outDir)
	return r, nil
}

func (r *Run) liveness(status string) {
	r.Metrics.DiscoveryWaitsTotal.Inc()
	monitoring.Diagf("%s", status)
	if r.env.Liveness != nil {
		r.env.Liveness(status)
	}
}

func newSource(cfg *config.Config, env Env, live discovery.Liveness) (discovery.Source, error) {
	switch cfg.GetMode() {
	case config.ModeFilelist:
		if len(env.Files) == 0 {
			return nil, fmt.Errorf("filelist mode needs at least one input file")
		}
		return discovery.NewList(env.Files), nil
	case config.ModeRealtime:
		dir := cfg.GetInputDir()
		if err := env.FS.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("input dir %s: %w", dir, err)
		}
		return discovery.NewRealtime(env.FS, env.Clock, discovery.RealtimeOptions{
			Dir:          dir,
			Ext:          cfg.GetInputFileExt(),
			Exclude:      []string{cfg.GetOutputDir()},
			PollInterval: cfg.GetPollInterval(),
			Quiescence:   cfg.GetFileQuiescence(),
			MaxWait:      cfg.GetWaitTimeout(),
			Lookback:     cfg.GetLookback(),
		}, live), nil
	default:
		l, err := discovery.NewArchive(env.FS, discovery.ArchiveOptions{
			Dir:     cfg.GetInputDir(),
			Ext:     cfg.GetInputFileExt(),
			Exclude: []string{cfg.GetOutputDir()},
			Start:   cfg.GetArchiveStart(),
			End:     cfg.GetArchiveEnd(),
		})
		if err != nil {
			return nil, err
		}
		monitoring.Diagf("archive: %d files in %s", l.Len(), cfg.GetInputDir())
		return l, nil
	}
}

// Execute runs the driver to completion and records the outcome.
func (r *Run) Execute(ctx context.Context) error {
	runErr := r.Driver.Run(ctx)
	if err := r.Finish(runErr); err != nil {
		monitoring.Warnf("finish run %s: %v", r.ID, err)
	}
	return runErr
}

// Finish stamps the catalog, writes the final metrics textfile and closes
// the catalog. It is safe to call more than once.
func (r *Run) Finish(runErr error) error {
	s := r.Driver.Summary()
	monitoring.Opsf("run %s: %d files ok, %d failed, %d outputs, %d pulses",
		r.ID, s.FilesOK, s.FilesFailed, s.Outputs, s.Pulses)

	var errs []error
	if r.catalog != nil {
		// The run context may already be cancelled.
		if err := r.catalog.FinishRun(context.Background(), r.env.Clock.Now(), s.FilesOK, s.FilesFailed, runErr); err != nil {
			errs = append(errs, fmt.Errorf("catalog: %w", err))
		}
	}
	if err := r.Metrics.WriteTextfile(r.cfg.GetMetricsTextfile()); err != nil {
		errs = append(errs, fmt.Errorf("metrics textfile: %w", err))
	}
	if err := r.closeCatalog(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Run) closeCatalog() error {
	if r.catalog == nil {
		return nil
	}
	err := r.catalog.Close()
	r.catalog = nil
	return err
}
