package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/gamic2iwrf/internal/discovery"
	"github.com/banshee-data/gamic2iwrf/internal/fsutil"
	"github.com/banshee-data/gamic2iwrf/internal/gamic"
	"github.com/banshee-data/gamic2iwrf/internal/iwrf"
	"github.com/banshee-data/gamic2iwrf/internal/metrics"
	"github.com/banshee-data/gamic2iwrf/internal/modes"
	"github.com/banshee-data/gamic2iwrf/internal/monitoring"
	"github.com/banshee-data/gamic2iwrf/internal/output"
	"github.com/banshee-data/gamic2iwrf/internal/timeutil"
	"github.com/banshee-data/gamic2iwrf/internal/transcode"
)

// Config holds the driver's collaborators.
type Config struct {
	Source  discovery.Source
	Builder *transcode.Builder
	Output  *output.Manager
	FS      fsutil.FileSystem
	Clock   timeutil.Clock

	// ResetStatePerFile clears the PRT and burst phase carries before each
	// input file. When false they carry across files.
	ResetStatePerFile bool

	Metrics         *metrics.Metrics // Optional
	MetricsTextfile string           // Optional: rewritten after every file

	// OnFileClosed, when non-nil, is called for every output file closed.
	OnFileClosed func(f *output.File)
}

// Summary counts the outcome of a run.
type Summary struct {
	FilesOK     int
	FilesFailed int
	Outputs     int
	Pulses      int
}

// Driver processes one input file at a time.
type Driver struct {
	cfg     Config
	summary Summary
}

// NewDriver returns a Driver. Source, Builder and Output are required.
func NewDriver(cfg Config) *Driver {
	if cfg.FS == nil {
		cfg.FS = fsutil.OSFileSystem{}
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Driver{cfg: cfg}
}

// Summary returns the counts so far.
func (d *Driver) Summary() Summary {
	return d.summary
}

// Run drains the source. It returns nil when a finite source is exhausted
// or a realtime source times out, ctx.Err() when cancelled, and an error
// wrapping output.ErrFatal when output can no longer be written. Errors
// confined to one input file are logged and counted, and the run goes on.
// Cancellation is checked between files only.
func (d *Driver) Run(ctx context.Context) error {
	for {
		path, err := d.cfg.Source.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, discovery.ErrWaitTimeout):
			monitoring.Opsf("%v, stopping", err)
			return nil
		case err != nil:
			return err
		}

		start := d.cfg.Clock.Now()
		err = d.ProcessFile(path)
		ok := err == nil
		if ok {
			d.summary.FilesOK++
		} else {
			d.summary.FilesFailed++
		}
		if d.cfg.Metrics != nil {
			d.cfg.Metrics.FileDone(ok, d.cfg.Clock.Since(start))
			if werr := d.cfg.Metrics.WriteTextfile(d.cfg.MetricsTextfile); werr != nil {
				monitoring.Warnf("metrics textfile: %v", werr)
			}
		}
		if err != nil {
			if errors.Is(err, output.ErrFatal) {
				monitoring.Errorf("%s: %v", path, err)
				return err
			}
			monitoring.Errorf("skipping rest of %s: %v", path, err)
		}
	}
}

// ProcessFile transcodes every record of path into one output file. A
// decode error ends the file early; the pulses already written are closed
// and indexed as a partial output and the error is returned.
func (d *Driver) ProcessFile(path string) error {
	if d.cfg.ResetStatePerFile {
		d.cfg.Builder.ResetState()
	}

	in, err := d.cfg.FS.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	monitoring.Diagf("reading %s", path)
	rd := gamic.NewReader(bufio.NewReaderSize(in, 1<<20))

	var (
		meta     modes.Metadata
		haveMeta bool
		pulses   int
		fileErr  error
	)

	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fileErr = fmt.Errorf("record %d at offset %d: %w", pulses+1, rd.Offset(), err)
			break
		}
		if !haveMeta {
			meta = d.cfg.Builder.Classify(rec)
			haveMeta = true
			if meta.PulseWidthFallback && d.cfg.Metrics != nil {
				d.cfg.Metrics.PwFallbacksTotal.Inc()
			}
		}
		var block []iwrf.Packet
		if d.cfg.Output.MetadataDue() {
			block = d.cfg.Builder.MetadataPackets(meta, rec.Header.Timestamp())
		}
		p, err := d.cfg.Builder.BuildPulse(rec, meta)
		if err != nil {
			fileErr = err
			break
		}
		if err := d.cfg.Output.Append(path, p, block); err != nil {
			if d.cfg.Output.IsOpen() {
				if aerr := d.cfg.Output.Abort(); aerr != nil {
					monitoring.Warnf("abort output for %s: %v", path, aerr)
				}
			}
			return err
		}
		pulses++
	}

	if d.cfg.Output.IsOpen() {
		f, err := d.cfg.Output.Close()
		if err != nil {
			return err
		}
		d.closed(f)
	} else if fileErr == nil {
		monitoring.Warnf("%s contains no pulses", path)
	}
	return fileErr
}

func (d *Driver) closed(f *output.File) {
	d.summary.Outputs++
	d.summary.Pulses += f.PulseCount
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.OutputClosed(f.PulseCount, f.MetadataBlocks, f.Bytes, f.CloseTime, f.LastPulseTime)
	}
	if d.cfg.OnFileClosed != nil {
		d.cfg.OnFileClosed(f)
	}
}
