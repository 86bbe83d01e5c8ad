// Package ldata maintains the _latest_data_info files that tell downstream
// readers which output file was written most recently.
package ldata

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/banshee-data/gamic2iwrf/internal/fsutil"
	"github.com/banshee-data/gamic2iwrf/internal/output"
)

// BaseName is the file name stem; .xml and .json variants are written.
const BaseName = "_latest_data_info"

// Info is one latest data record.
type Info struct {
	XMLName          xml.Name `xml:"latest_data_info" json:"-"`
	UnixTime         int64    `xml:"unix_time" json:"unix_time"`
	Year             int      `xml:"year" json:"year"`
	Month            int      `xml:"month" json:"month"`
	Day              int      `xml:"day" json:"day"`
	Hour             int      `xml:"hour" json:"hour"`
	Min              int      `xml:"min" json:"min"`
	Sec              int      `xml:"sec" json:"sec"`
	RelDataPath      string   `xml:"rel_data_path" json:"rel_data_path"`
	FileExt          string   `xml:"file_ext" json:"file_ext"`
	DataType         string   `xml:"data_type" json:"data_type"`
	UserInfo1        string   `xml:"user_info1" json:"user_info1"`
	UserInfo2        string   `xml:"user_info2" json:"user_info2"`
	IsForecast       bool     `xml:"is_forecast" json:"is_forecast"`
	ForecastLeadSecs int      `xml:"forecast_lead_secs" json:"forecast_lead_secs"`
	Writer           string   `xml:"writer" json:"writer"`
	MaxTime          int64    `xml:"max_time" json:"max_time"`
	PrevModTime      int64    `xml:"prev_mod_time" json:"prev_mod_time"`
}

// Time returns the data time as UTC.
func (i *Info) Time() time.Time {
	return time.Unix(i.UnixTime, 0).UTC()
}

// Writer writes the info files into Dir after each closed output file. It
// implements output.Indexer.
type Writer struct {
	FS       fsutil.FileSystem
	Dir      string
	App      string
	DataType string
	// RunID is recorded in user_info2 so readers can group files by run.
	RunID string

	mu      sync.Mutex
	seeded  bool
	maxTime int64
	prevMod int64
}

var _ output.Indexer = (*Writer)(nil)

// Index writes the info for f.
func (w *Writer) Index(f *output.File) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.seeded {
		if prev, err := Read(w.FS, w.Dir); err == nil {
			w.maxTime, w.prevMod = prev.MaxTime, prev.UnixTime
		}
		w.seeded = true
	}

	t := f.FirstPulseTime.UTC()
	info := Info{
		UnixTime:    t.Unix(),
		Year:        t.Year(),
		Month:       int(t.Month()),
		Day:         t.Day(),
		Hour:        t.Hour(),
		Min:         t.Minute(),
		Sec:         t.Second(),
		RelDataPath: filepath.ToSlash(f.RelPath),
		FileExt:     f.Format.FileExt(),
		DataType:    w.DataType,
		UserInfo1:   f.Input,
		UserInfo2:   w.RunID,
		Writer:      w.App,
		MaxTime:     max(w.maxTime, t.Unix()),
		PrevModTime: w.prevMod,
	}

	x, err := xml.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal xml: %w", err)
	}
	x = append(x, '\n')
	j, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	j = append(j, '\n')

	if err := w.replace(BaseName+".xml", x); err != nil {
		return err
	}
	if err := w.replace(BaseName+".json", j); err != nil {
		return err
	}
	w.maxTime, w.prevMod = info.MaxTime, info.UnixTime
	return nil
}

// replace writes data to a tmp sibling then renames it over name.
func (w *Writer) replace(name string, data []byte) error {
	final := filepath.Join(w.Dir, name)
	tmp := filepath.Join(w.Dir, "."+name+".tmp")
	if err := w.FS.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := w.FS.Rename(tmp, final); err != nil {
		_ = w.FS.Remove(tmp)
		return fmt.Errorf("rename %s: %w", final, err)
	}
	return nil
}

// Read loads the JSON info from dir.
func Read(fsys fsutil.FileSystem, dir string) (*Info, error) {
	data, err := fsys.ReadFile(filepath.Join(dir, BaseName+".json"))
	if err != nil {
		return nil, err
	}
	var info Info
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&info); err != nil {
		return nil, fmt.Errorf("parse %s.json: %w", BaseName, err)
	}
	return &info, nil
}
