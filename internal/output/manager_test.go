package output

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gamic2iwrf/internal/fsutil"
	"github.com/banshee-data/gamic2iwrf/internal/iwrf"
	"github.com/banshee-data/gamic2iwrf/internal/modes"
	"github.com/banshee-data/gamic2iwrf/internal/monitoring"
	"github.com/banshee-data/gamic2iwrf/internal/testutil"
	"github.com/banshee-data/gamic2iwrf/internal/timeutil"
	"github.com/banshee-data/gamic2iwrf/internal/transcode"
)

type recordingIndexer struct {
	files []File
	err   error
}

func (r *recordingIndexer) Index(f *File) error {
	r.files = append(r.files, *f)
	return r.err
}

// feed transcodes n pulses starting at counter first and appends them to m
// for input the way the driver does: a due metadata block is built before
// its pulse. Pulse times are shifted by shiftSecs.
func feed(t *testing.T, m *Manager, b *transcode.Builder, input string, first uint64, n int, shiftSecs uint32) []*transcode.Pulse {
	t.Helper()
	var out []*transcode.Pulse
	var meta modes.Metadata
	for i, o := range testutil.Sequence(first, n, 1000) {
		o.TimeSecs += shiftSecs
		rec := testutil.Record(o)
		if i == 0 {
			meta = b.Classify(rec)
		}
		var block []iwrf.Packet
		if m.MetadataDue() {
			block = b.MetadataPackets(meta, rec.Header.Timestamp())
		}
		p, err := b.BuildPulse(rec, meta)
		require.NoError(t, err)
		require.NoError(t, m.Append(input, p, block))
		out = append(out, p)
	}
	return out
}

// one builds a single pulse and its metadata block without writing them.
func one(t *testing.T, b *transcode.Builder) (*transcode.Pulse, []iwrf.Packet) {
	t.Helper()
	rec := testutil.Record(testutil.Sequence(1, 1, 1000)[0])
	meta := b.Classify(rec)
	block := b.MetadataPackets(meta, rec.Header.Timestamp())
	p, err := b.BuildPulse(rec, meta)
	require.NoError(t, err)
	return p, block
}

func testBuilder() *transcode.Builder {
	return transcode.NewBuilder(transcode.Options{
		RadarID: 1,
		Site:    modes.Site{XmitRcvMode: "sim_hv_fixed_hv", PulseWidthsUs: []float64{1.0}},
	})
}

func newTestManager(mfs *fsutil.MemoryFileSystem, interval int, ix ...Indexer) *Manager {
	return NewManager(Config{
		Root:             "/out",
		Format:           iwrf.FormatIWRF,
		MetadataInterval: interval,
		FS:               mfs,
		Clock:            timeutil.NewMockClock(time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC)),
		Indexers:         ix,
	})
}

func readFrames(t *testing.T, data []byte) (ids []int32, seqs []int64) {
	t.Helper()
	rd := iwrf.NewReader(bytes.NewReader(data))
	for {
		f, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return ids, seqs
		}
		require.NoError(t, err)
		ids = append(ids, f.Info.ID)
		seqs = append(seqs, f.Info.SeqNum)
	}
}

func readIDs(t *testing.T, data []byte) []int32 {
	t.Helper()
	ids, _ := readFrames(t, data)
	return ids
}

func assertIncreasing(t *testing.T, seqs []int64) {
	t.Helper()
	for i := 1; i < len(seqs); i++ {
		assert.Greater(t, seqs[i], seqs[i-1], "packet %d of %v", i, seqs)
	}
}

func TestManager_OneOutputPerInput(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	ix := &recordingIndexer{}
	m := newTestManager(mfs, 0, ix)
	b := testBuilder()

	const nFiles = 3
	for i := 0; i < nFiles; i++ {
		input := fmt.Sprintf("/in/file%d.bin", i)
		// Shift each file by a second so names differ.
		feed(t, m, b, input, uint64(100*i+1), 2, uint32(i))
		assert.True(t, m.IsOpen())
		f, err := m.Close()
		require.NoError(t, err)
		assert.False(t, m.IsOpen())
		assert.Equal(t, 2, f.PulseCount)
		assert.Equal(t, 1, f.MetadataBlocks)
		assert.Equal(t, input, f.Input)
		assert.Equal(t, 1, f.Stats.PrtSamples)
		assert.InDelta(t, 1000, f.Stats.MeanPrtUsec, 1e-6)
	}

	files := mfs.Files("/out")
	assert.Len(t, files, nFiles)
	require.Len(t, ix.files, nFiles)
	for i, f := range ix.files {
		assert.Equal(t, files[i], f.Path)
		assert.Equal(t, "20240315/"+f.Path[len("/out/20240315/"):], f.RelPath)

		data, err := mfs.ReadFile(f.Path)
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), f.Bytes)
		ids, seqs := readFrames(t, data)
		assert.Equal(t, []int32{
			iwrf.RadarInfoID, iwrf.TsProcessingID, iwrf.CalibrationID,
			iwrf.PulseHeaderID, iwrf.PulseHeaderID,
		}, ids)
		assertIncreasing(t, seqs)
	}
}

func TestManager_MetadataCadence(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	m := newTestManager(mfs, 3)
	b := testBuilder()
	feed(t, m, b, "/in/a.bin", 1, 7, 0)
	f, err := m.Close()
	require.NoError(t, err)
	assert.Equal(t, 3, f.MetadataBlocks)

	data, err := mfs.ReadFile(f.Path)
	require.NoError(t, err)
	ids, seqs := readFrames(t, data)
	assertIncreasing(t, seqs)

	var pattern []byte
	for _, id := range ids {
		if id == iwrf.PulseHeaderID {
			pattern = append(pattern, 'P')
		} else if id == iwrf.RadarInfoID {
			pattern = append(pattern, 'M')
		}
	}
	// Metadata precedes pulses 1, 4 and 7.
	assert.Equal(t, "MPPPMPPPMP", string(pattern))
}

func TestManager_DefaultIntervalIsThousand(t *testing.T) {
	m := NewManager(Config{FS: fsutil.NewMemoryFileSystem()})
	assert.Equal(t, DefaultMetadataInterval, m.cfg.MetadataInterval)
	assert.Equal(t, 1000, DefaultMetadataInterval)
}

func TestManager_MetadataEveryPulse(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	m := newTestManager(mfs, 1)
	b := testBuilder()
	feed(t, m, b, "/in/a.bin", 1, 3, 0)
	f, err := m.Close()
	require.NoError(t, err)
	assert.Equal(t, 3, f.MetadataBlocks)
}

func TestManager_FatalErrors(t *testing.T) {
	b := testBuilder()
	p, block := one(t, b)

	t.Run("mkdir", func(t *testing.T) {
		mfs := fsutil.NewMemoryFileSystem()
		mfs.FailMkdir = errors.New("read-only filesystem")
		m := newTestManager(mfs, 0)
		err := m.Append("/in/a.bin", p, block)
		assert.ErrorIs(t, err, ErrFatal)
		assert.False(t, m.IsOpen())
	})

	t.Run("create", func(t *testing.T) {
		mfs := fsutil.NewMemoryFileSystem()
		mfs.FailCreate = errors.New("quota exceeded")
		m := newTestManager(mfs, 0)
		err := m.Append("/in/a.bin", p, block)
		assert.ErrorIs(t, err, ErrFatal)
		assert.Contains(t, err.Error(), "quota exceeded")
	})
}

func TestManager_NotOpen(t *testing.T) {
	m := newTestManager(fsutil.NewMemoryFileSystem(), 0)
	p, block := one(t, testBuilder())

	assert.ErrorIs(t, m.Write(p, block), ErrNotOpen)
	_, err := m.Close()
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, m.Abort(), ErrNotOpen)
}

func TestManager_MetadataDue(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	m := newTestManager(mfs, 3)
	b := testBuilder()

	assert.True(t, m.MetadataDue(), "closed manager always needs metadata")
	var due []bool
	for i := 0; i < 7; i++ {
		due = append(due, m.MetadataDue())
		feed(t, m, b, "/in/a.bin", uint64(i+1), 1, 0)
	}
	assert.Equal(t, []bool{true, false, false, true, false, false, true}, due)
}

func TestManager_MissingMetadataRejected(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	m := newTestManager(mfs, 0)
	p, block := one(t, testBuilder())

	assert.ErrorIs(t, m.Append("/in/a.bin", p, nil), ErrMetadataDue)
	assert.False(t, m.IsOpen(), "no file is opened without a metadata block")
	assert.Empty(t, mfs.Files("/out"))

	require.NoError(t, m.Append("/in/a.bin", p, block))
	f, err := m.Close()
	require.NoError(t, err)
	assert.Equal(t, 1, f.MetadataBlocks)
}

func TestManager_AbortSkipsIndexers(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	ix := &recordingIndexer{}
	m := newTestManager(mfs, 0, ix)
	b := testBuilder()
	feed(t, m, b, "/in/a.bin", 1, 2, 0)
	path := m.Current().Path

	require.NoError(t, m.Abort())
	assert.False(t, m.IsOpen())
	assert.Empty(t, ix.files)

	data, err := mfs.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, readIDs(t, data), 5, "buffered packets reach the file")
}

func TestManager_IndexFailureIsWarning(t *testing.T) {
	original := monitoring.Logf
	defer func() { monitoring.Logf = original }()
	monitoring.SetLogWriters(nil, nil, nil)
	var logs []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logs = append(logs, fmt.Sprintf(format, v...))
	})

	mfs := fsutil.NewMemoryFileSystem()
	failing := &recordingIndexer{err: errors.New("disk full")}
	ok := &recordingIndexer{}
	m := newTestManager(mfs, 0, failing, ok)
	feed(t, m, testBuilder(), "/in/a.bin", 1, 1, 0)
	f, err := m.Close()
	require.NoError(t, err)
	assert.Len(t, ok.files, 1, "later indexers still run")
	if assert.Len(t, logs, 1) {
		assert.Contains(t, logs[0], "WARNING - index "+f.RelPath)
		assert.Contains(t, logs[0], "disk full")
	}
}

func TestManager_LegacyFormatHasNoEnvelope(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	m := NewManager(Config{Root: "/out", Format: iwrf.FormatLegacy, FS: mfs})
	ps := feed(t, m, testBuilder(), "/in/a.bin", 1, 1, 0)
	f, err := m.Close()
	require.NoError(t, err)
	assert.Equal(t, ".ts", f.Path[len(f.Path)-3:])

	want := int64(iwrf.RadarInfoSize + iwrf.TsProcessingSize + iwrf.CalibrationSize + iwrf.PulseHeaderSize -
		4*iwrf.PacketInfoSize + int64(len(ps[0].Payload)))
	assert.Equal(t, want, f.Bytes)
}
