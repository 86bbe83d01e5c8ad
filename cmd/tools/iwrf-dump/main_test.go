package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gamic2iwrf/internal/fsutil"
	"github.com/banshee-data/gamic2iwrf/internal/iwrf"
	"github.com/banshee-data/gamic2iwrf/internal/modes"
	"github.com/banshee-data/gamic2iwrf/internal/output"
	"github.com/banshee-data/gamic2iwrf/internal/testutil"
	"github.com/banshee-data/gamic2iwrf/internal/timeutil"
	"github.com/banshee-data/gamic2iwrf/internal/transcode"
)

// writeTS transcodes n synthetic pulses into an IWRF file and returns its bytes.
func writeTS(t *testing.T, n, interval int) []byte {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	m := output.NewManager(output.Config{
		Root:             "/out",
		Format:           iwrf.FormatIWRF,
		MetadataInterval: interval,
		FS:               mfs,
		Clock:            timeutil.NewMockClock(time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC)),
	})
	b := transcode.NewBuilder(transcode.Options{
		RadarID: 1,
		Site:    modes.Site{XmitRcvMode: "sim_hv_fixed_hv", PulseWidthsUs: []float64{1.0}},
	})
	var meta modes.Metadata
	for i, o := range testutil.Sequence(1, n, 1000) {
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
		require.NoError(t, m.Append("/in/a.bin", p, block))
	}
	f, err := m.Close()
	require.NoError(t, err)
	data, err := mfs.ReadFile(f.Path)
	require.NoError(t, err)
	return data
}

func TestDump_Counts(t *testing.T) {
	t.Parallel()
	data := writeTS(t, 3, 2)

	var out bytes.Buffer
	rep, err := dump(&out, bytes.NewReader(data), options{})
	require.NoError(t, err)
	assert.Equal(t, 9, rep.Packets)
	assert.Equal(t, 2, rep.Metadata)
	assert.Equal(t, 3, rep.Pulses)
	assert.Zero(t, rep.Unknown)
	assert.Zero(t, rep.SeqErrors)
	assert.Zero(t, rep.SizeErrors)
	assert.True(t, rep.Last.After(rep.First))

	text := out.String()
	assert.Equal(t, 2, strings.Count(text, "RADAR_INFO"))
	assert.Contains(t, text, "TS_PROCESSING")
	assert.NotContains(t, text, "PULSE", "pulse lines need -pulses")
}

func TestDump_PulsesAndIQ(t *testing.T) {
	t.Parallel()
	data := writeTS(t, 2, 0)

	var out bytes.Buffer
	_, err := dump(&out, bytes.NewReader(data), options{Pulses: true, Gates: 2})
	require.NoError(t, err)
	text := out.String()
	assert.Equal(t, 2, strings.Count(text, " PULSE "))
	assert.Contains(t, text, "  ch0 (")
}

func TestDump_SequenceRegression(t *testing.T) {
	t.Parallel()
	data := writeTS(t, 2, 0)
	twice := append(append([]byte{}, data...), data...)

	var out bytes.Buffer
	rep, err := dump(&out, bytes.NewReader(twice), options{})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.SeqErrors)
	assert.Contains(t, out.String(), "! seq ")
}

func TestDump_Truncated(t *testing.T) {
	t.Parallel()
	data := writeTS(t, 2, 0)

	var out bytes.Buffer
	rep, err := dump(&out, bytes.NewReader(data[:len(data)-10]), options{})
	require.Error(t, err)
	assert.Equal(t, 4, rep.Packets, "packets before the damaged one are reported")
}
