package ldata

import (
	"encoding/xml"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gamic2iwrf/internal/fsutil"
	"github.com/banshee-data/gamic2iwrf/internal/iwrf"
	"github.com/banshee-data/gamic2iwrf/internal/output"
)

func closedFile(at time.Time, rel string) *output.File {
	return &output.File{
		Path:           "/out/" + rel,
		RelPath:        rel,
		Input:          "/in/pulses_0001.bin",
		Format:         iwrf.FormatIWRF,
		FirstPulseTime: at,
	}
}

func TestWriter_Index(t *testing.T) {
	t.Parallel()
	mfs := fsutil.NewMemoryFileSystem()
	w := &Writer{FS: mfs, Dir: "/out", App: "gamic2iwrf", DataType: "iwrf_ts", RunID: "run-1"}

	at := time.Date(2024, 3, 15, 12, 34, 56, 789e6, time.UTC)
	require.NoError(t, w.Index(closedFile(at, "20240315/123456.789_005_124.AZ_SUR.iwrf_ts")))

	got, err := Read(mfs, "/out")
	require.NoError(t, err)
	want := &Info{
		UnixTime:    at.Unix(),
		Year:        2024,
		Month:       3,
		Day:         15,
		Hour:        12,
		Min:         34,
		Sec:         56,
		RelDataPath: "20240315/123456.789_005_124.AZ_SUR.iwrf_ts",
		FileExt:     "iwrf_ts",
		DataType:    "iwrf_ts",
		UserInfo1:   "/in/pulses_0001.bin",
		UserInfo2:   "run-1",
		Writer:      "gamic2iwrf",
		MaxTime:     at.Unix(),
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Info{}, "XMLName")); diff != "" {
		t.Errorf("info mismatch (-want +got):\n%s", diff)
	}

	raw, err := mfs.ReadFile("/out/_latest_data_info.xml")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<latest_data_info>")
	assert.Contains(t, string(raw), "<rel_data_path>20240315/123456.789_005_124.AZ_SUR.iwrf_ts</rel_data_path>")

	var fromXML Info
	require.NoError(t, xml.Unmarshal(raw, &fromXML))
	assert.Equal(t, got.UnixTime, fromXML.UnixTime)

	for _, f := range mfs.Files("/out") {
		assert.NotContains(t, f, ".tmp", "tmp files are renamed away")
	}
}

func TestWriter_MaxTimeNeverGoesBackwards(t *testing.T) {
	t.Parallel()
	mfs := fsutil.NewMemoryFileSystem()
	w := &Writer{FS: mfs, Dir: "/out", App: "gamic2iwrf"}

	late := time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC)
	early := late.Add(-time.Hour)
	require.NoError(t, w.Index(closedFile(late, "a")))
	require.NoError(t, w.Index(closedFile(early, "b")))

	got, err := Read(mfs, "/out")
	require.NoError(t, err)
	assert.Equal(t, early.Unix(), got.UnixTime)
	assert.Equal(t, late.Unix(), got.MaxTime)
	assert.Equal(t, late.Unix(), got.PrevModTime)
	assert.Equal(t, "b", got.RelDataPath)
}

func TestWriter_SeedsFromExistingFile(t *testing.T) {
	t.Parallel()
	mfs := fsutil.NewMemoryFileSystem()
	first := &Writer{FS: mfs, Dir: "/out"}
	late := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)
	require.NoError(t, first.Index(closedFile(late, "x")))

	second := &Writer{FS: mfs, Dir: "/out"}
	require.NoError(t, second.Index(closedFile(late.Add(-time.Minute), "y")))

	got, err := Read(mfs, "/out")
	require.NoError(t, err)
	assert.Equal(t, late.Unix(), got.MaxTime)
	assert.Equal(t, late.Unix(), got.PrevModTime)
}

func TestRead_Missing(t *testing.T) {
	t.Parallel()
	_, err := Read(fsutil.NewMemoryFileSystem(), "/nowhere")
	assert.Error(t, err)
}

type failingFS struct {
	*fsutil.MemoryFileSystem
}

func (failingFS) Rename(string, string) error { return errors.New("cross-device link") }

func TestWriter_RenameFailureCleansUp(t *testing.T) {
	t.Parallel()
	mfs := fsutil.NewMemoryFileSystem()
	w := &Writer{FS: failingFS{mfs}, Dir: "/out"}

	err := w.Index(closedFile(time.Unix(0, 0), "z"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cross-device link")
	assert.Empty(t, mfs.Files("/out"))
}
