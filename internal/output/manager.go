// Package output owns the lifecycle of IWRF output files: one file per
// input file, opened on the first pulse and closed and indexed at input EOF.
package output

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/banshee-data/gamic2iwrf/internal/fsutil"
	"github.com/banshee-data/gamic2iwrf/internal/iwrf"
	"github.com/banshee-data/gamic2iwrf/internal/monitoring"
	"github.com/banshee-data/gamic2iwrf/internal/pulsestats"
	"github.com/banshee-data/gamic2iwrf/internal/timeutil"
	"github.com/banshee-data/gamic2iwrf/internal/transcode"
)

// ErrFatal marks failures after which no further output can be written.
var ErrFatal = errors.New("output unavailable")

// ErrNotOpen is returned by Write and Close when no file is open.
var ErrNotOpen = errors.New("no output file open")

// ErrMetadataDue is returned by Write when a metadata block is due and none
// was supplied.
var ErrMetadataDue = errors.New("metadata block due")

// DefaultMetadataInterval is how often, in pulses, metadata is re-emitted.
const DefaultMetadataInterval = 1000

// File describes an output file while it is open and after it is closed.
type File struct {
	Path           string
	RelPath        string
	Input          string
	ScanMode       iwrf.ScanMode
	Encoding       iwrf.IQEncoding
	Format         iwrf.Format
	PulseCount     int
	MetadataBlocks int
	Bytes          int64
	OpenTime       time.Time
	CloseTime      time.Time
	FirstPulseTime time.Time
	LastPulseTime  time.Time
	// Stats is filled in when the file is closed.
	Stats pulsestats.Summary
}

// Indexer records a closed output file somewhere.
type Indexer interface {
	Index(f *File) error
}

// Config configures a Manager.
type Config struct {
	Root             string
	Format           iwrf.Format
	MetadataInterval int
	FS               fsutil.FileSystem
	Clock            timeutil.Clock
	Indexers         []Indexer
	// BufferSize is the write buffer in bytes. Defaults to 1 MiB.
	BufferSize int
}

// Manager is a two-state machine: Closed and Open.
type Manager struct {
	cfg  Config
	file *File
	out  io.WriteCloser
	bw   *bufio.Writer
	pw   *iwrf.Writer
	acc  pulsestats.Accumulator
}

// NewManager returns a closed Manager.
func NewManager(cfg Config) *Manager {
	if cfg.MetadataInterval <= 0 {
		cfg.MetadataInterval = DefaultMetadataInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1 << 20
	}
	if cfg.FS == nil {
		cfg.FS = fsutil.OSFileSystem{}
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Manager{cfg: cfg}
}

// IsOpen reports whether an output file is open.
func (m *Manager) IsOpen() bool {
	return m.file != nil
}

// Current returns the open file, or nil.
func (m *Manager) Current() *File {
	return m.file
}

// MetadataDue reports whether the next pulse written must be preceded by a
// metadata block: the first pulse of a file and every MetadataInterval
// pulses after it. Callers build the block before the pulse so packet
// sequence numbers follow write order.
func (m *Manager) MetadataDue() bool {
	if m.file == nil || m.cfg.MetadataInterval == 1 {
		return true
	}
	return (m.file.PulseCount+1)%m.cfg.MetadataInterval == 1
}

// Append writes p to the output for input, opening a new file if none is
// open. meta is written ahead of p when MetadataDue reports true.
func (m *Manager) Append(input string, p *transcode.Pulse, meta []iwrf.Packet) error {
	if m.file == nil {
		if len(meta) == 0 {
			return fmt.Errorf("pulse %d: %w", p.Header.PulseSeqNum, ErrMetadataDue)
		}
		if err := m.open(input, p); err != nil {
			return err
		}
	}
	return m.Write(p, meta)
}

func (m *Manager) open(input string, p *transcode.Pulse) error {
	path := Name(NameFields{
		Root:      m.cfg.Root,
		Time:      p.Time,
		Azimuth:   p.Azimuth,
		Elevation: p.Elevation,
		ScanMode:  p.Header.ScanMode,
		Encoding:  p.Header.IQEncoding,
		Format:    m.cfg.Format,
	})
	if err := m.cfg.FS.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create directory: %w", ErrFatal, err)
	}
	out, err := m.cfg.FS.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create file: %w", ErrFatal, err)
	}

	rel, err := filepath.Rel(m.cfg.Root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	m.out = out
	m.bw = bufio.NewWriterSize(out, m.cfg.BufferSize)
	m.pw = iwrf.NewWriter(m.bw, m.cfg.Format)
	m.acc.Reset()
	m.file = &File{
		Path:           path,
		RelPath:        rel,
		Input:          input,
		ScanMode:       p.Header.ScanMode,
		Encoding:       p.Header.IQEncoding,
		Format:         m.cfg.Format,
		OpenTime:       m.cfg.Clock.Now(),
		FirstPulseTime: p.Time,
	}
	monitoring.Diagf("opened %s for %s", path, input)
	return nil
}

// Write appends p to the open file. When a metadata block is due meta is
// written first; otherwise meta is ignored.
func (m *Manager) Write(p *transcode.Pulse, meta []iwrf.Packet) error {
	if m.file == nil {
		return ErrNotOpen
	}
	f := m.file
	if m.MetadataDue() {
		if len(meta) == 0 {
			return fmt.Errorf("pulse %d: %w", p.Header.PulseSeqNum, ErrMetadataDue)
		}
		for _, pkt := range meta {
			if err := m.pw.WritePacket(pkt); err != nil {
				return fmt.Errorf("%w: write metadata: %w", ErrFatal, err)
			}
		}
		f.MetadataBlocks++
	}
	f.PulseCount++
	if err := m.pw.WritePulse(p.Header, p.Payload); err != nil {
		return fmt.Errorf("%w: write pulse %d: %w", ErrFatal, p.Header.PulseSeqNum, err)
	}
	f.LastPulseTime = p.Time
	f.Bytes = m.pw.BytesWritten()
	m.acc.Add(p.PrtSecs, p.BurstMag)
	return nil
}

// Close flushes and closes the open file, then hands it to every Indexer.
// Indexer failures are logged and do not fail the close.
func (m *Manager) Close() (*File, error) {
	if m.file == nil {
		return nil, ErrNotOpen
	}
	f := m.file
	flushErr := m.bw.Flush()
	closeErr := m.out.Close()
	m.file, m.out, m.bw, m.pw = nil, nil, nil, nil

	f.CloseTime = m.cfg.Clock.Now()
	f.Stats = m.acc.Summary()
	if err := errors.Join(flushErr, closeErr); err != nil {
		return f, fmt.Errorf("%w: close %s: %w", ErrFatal, f.Path, err)
	}
	monitoring.Diagf("closed %s: %d pulses, %d bytes, prt %.1f+-%.1f us, burst %.3f",
		f.Path, f.PulseCount, f.Bytes, f.Stats.MeanPrtUsec, f.Stats.StddevPrtUsec, f.Stats.MeanBurstMag)

	for _, ix := range m.cfg.Indexers {
		if err := ix.Index(f); err != nil {
			monitoring.Warnf("index %s: %v", f.RelPath, err)
		}
	}
	return f, nil
}

// Abort closes the open file without indexing it. It is used after a fatal
// write error; whatever reached the buffer is flushed on a best effort basis.
func (m *Manager) Abort() error {
	if m.file == nil {
		return ErrNotOpen
	}
	path := m.file.Path
	flushErr := m.bw.Flush()
	closeErr := m.out.Close()
	m.file, m.out, m.bw, m.pw = nil, nil, nil, nil
	monitoring.Diagf("aborted %s", path)
	return errors.Join(flushErr, closeErr)
}
