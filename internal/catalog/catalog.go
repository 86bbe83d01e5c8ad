// Package catalog keeps a SQLite record of every transcoder run and every
// output file it closed.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/gamic2iwrf/internal/monitoring"
	"github.com/banshee-data/gamic2iwrf/internal/output"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// Catalog wraps the database handle.
type Catalog struct {
	db    *sql.DB
	runID string
}

// Run describes one invocation of the transcoder.
type Run struct {
	ID        string
	StartedAt time.Time
	Version   string
	Mode      string
	OutputDir string
}

// FileRecord is one row of output_files.
type FileRecord struct {
	RunID          string
	RelPath        string
	InputPath      string
	ScanMode       string
	Encoding       int
	PulseCount     int
	MetadataBlocks int
	Bytes          int64
	FirstPulse     time.Time
	LastPulse      time.Time
	MeanPrtUsec    sql.NullFloat64
	StddevPrtUsec  sql.NullFloat64
	MeanBurstMag   sql.NullFloat64
}

// Open opens or creates the catalog at path and migrates it to the latest
// schema.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	c := &Catalog{db: db}
	if err := c.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(c.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

// migrateUp applies pending migrations. The migrate instance is not closed
// because that would close the shared database handle.
func (c *Catalog) migrateUp() error {
	m, err := c.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Version returns the applied schema version.
func (c *Catalog) Version() (uint, bool, error) {
	m, err := c.newMigrate()
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Diagf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

// StartRun records the start of a run. Files indexed afterwards are
// attributed to it.
func (c *Catalog) StartRun(ctx context.Context, r Run) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, version, mode, output_dir) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.Unix(), r.Version, r.Mode, r.OutputDir)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	c.runID = r.ID
	return nil
}

// FinishRun stamps the end of the current run with its file counts and, if
// the run failed, the error text.
func (c *Catalog) FinishRun(ctx context.Context, at time.Time, ok, failed int, runErr error) error {
	if c.runID == "" {
		return errors.New("no run started")
	}
	var msg sql.NullString
	if runErr != nil {
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	_, err := c.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, files_ok = ?, files_failed = ?, exit_error = ? WHERE run_id = ?`,
		at.Unix(), ok, failed, msg, c.runID)
	return err
}

var _ output.Indexer = (*Catalog)(nil)

// Index inserts a closed output file. It implements output.Indexer.
func (c *Catalog) Index(f *output.File) error {
	if c.runID == "" {
		return errors.New("no run started")
	}
	var meanPrt, stdPrt, burst sql.NullFloat64
	if f.Stats.PrtSamples > 0 {
		meanPrt = sql.NullFloat64{Float64: f.Stats.MeanPrtUsec, Valid: true}
		stdPrt = sql.NullFloat64{Float64: f.Stats.StddevPrtUsec, Valid: true}
	}
	if f.Stats.Pulses > 0 {
		burst = sql.NullFloat64{Float64: f.Stats.MeanBurstMag, Valid: true}
	}
	_, err := c.db.Exec(`
		INSERT INTO output_files (
			run_id, rel_path, input_path, scan_mode, encoding, pulse_count,
			metadata_blocks, bytes, first_pulse_unix, last_pulse_unix, closed_at,
			mean_prt_usec, stddev_prt_usec, mean_burst_mag
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.runID, f.RelPath, f.Input, f.ScanMode.Tag(), int(f.Encoding), f.PulseCount,
		f.MetadataBlocks, f.Bytes, unixFloat(f.FirstPulseTime), unixFloat(f.LastPulseTime),
		f.CloseTime.Unix(), meanPrt, stdPrt, burst)
	if err != nil {
		return fmt.Errorf("insert %s: %w", f.RelPath, err)
	}
	return nil
}

// Files lists the files of a run ordered by first pulse time.
func (c *Catalog) Files(ctx context.Context, runID string) ([]FileRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT run_id, rel_path, input_path, scan_mode, encoding, pulse_count,
		       metadata_blocks, bytes, first_pulse_unix, last_pulse_unix,
		       mean_prt_usec, stddev_prt_usec, mean_burst_mag
		FROM output_files WHERE run_id = ? ORDER BY first_pulse_unix, file_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		var r FileRecord
		var first, last float64
		if err := rows.Scan(&r.RunID, &r.RelPath, &r.InputPath, &r.ScanMode, &r.Encoding,
			&r.PulseCount, &r.MetadataBlocks, &r.Bytes, &first, &last,
			&r.MeanPrtUsec, &r.StddevPrtUsec, &r.MeanBurstMag); err != nil {
			return nil, err
		}
		r.FirstPulse = fromUnixFloat(first)
		r.LastPulse = fromUnixFloat(last)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunSummary returns the recorded counts for a run.
func (c *Catalog) RunSummary(ctx context.Context, runID string) (ok, failed int, finished bool, err error) {
	var fin sql.NullInt64
	err = c.db.QueryRowContext(ctx,
		`SELECT files_ok, files_failed, finished_at FROM runs WHERE run_id = ?`, runID).
		Scan(&ok, &failed, &fin)
	return ok, failed, fin.Valid, err
}

func unixFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixFloat(v float64) time.Time {
	secs := int64(v)
	return time.Unix(secs, int64((v-float64(secs))*1e9+0.5)).UTC()
}
