// Command gamic-ascope plots an A-scope of a GAMIC pulse file: power and
// phase against range averaged over a run of pulses, and optionally the
// Doppler spectrum of one gate. Pulses go through the same reorder and gain
// correction as the transcoder.
package main

import (
	"bufio"
	"errors"
	"flag"
	"io"
	"log"
	"os"

	"github.com/banshee-data/gamic2iwrf/internal/ascope"
	"github.com/banshee-data/gamic2iwrf/internal/config"
	"github.com/banshee-data/gamic2iwrf/internal/gamic"
	"github.com/banshee-data/gamic2iwrf/internal/modes"
	"github.com/banshee-data/gamic2iwrf/internal/transcode"
)

func main() {
	configPath := flag.String("config", "", "config file for gains and site (optional)")
	skip := flag.Int("skip", 0, "pulses to skip from the start of the file")
	count := flag.Int("n", 64, "pulses to average")
	gate := flag.Int("gate", -1, "gate for the Doppler spectrum (-1 disables)")
	channel := flag.Int("channel", 0, "channel for the Doppler spectrum")
	pngOut := flag.String("png", "", "write the power plot to this PNG file")
	spectrumPng := flag.String("spectrum-png", "", "write the spectrum plot to this PNG file")
	htmlOut := flag.String("html", "ascope.html", "write an interactive page to this file (empty disables)")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: %s [flags] <gamic-file>", os.Args[0])
	}

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	pulses, meta, err := readPulses(flag.Arg(0), cfg, *skip, *count)
	if err != nil {
		log.Fatal(err)
	}
	geom := ascope.Geometry{StartRangeM: meta.StartRangeM, GateSpacingM: meta.GateSpacingM}
	prof, err := ascope.Mean(pulses, geom)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("%d pulses from %s, %d gates, %d channels", len(pulses), flag.Arg(0), meta.NGates, meta.NChannels)

	var spectrum *ascope.Spectrum
	if *gate >= 0 {
		// The first pulse's PRT may reach back to the epoch.
		s, err := ascope.DopplerSpectrum(pulses[1:], *channel, *gate, geom, 0)
		if err != nil {
			log.Fatal(err)
		}
		spectrum = &s
		log.Printf("gate %d (%.2f km): peak at %.1f Hz", s.Gate, s.RangeKm, s.PeakHz)
	}

	if *pngOut != "" {
		pl, err := ascope.PowerPlot(prof)
		if err != nil {
			log.Fatal(err)
		}
		if err := ascope.SavePNG(*pngOut, pl); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s", *pngOut)
	}
	if *spectrumPng != "" && spectrum != nil {
		pl, err := ascope.SpectrumPlot(*spectrum)
		if err != nil {
			log.Fatal(err)
		}
		if err := ascope.SavePNG(*spectrumPng, pl); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s", *spectrumPng)
	}
	if *htmlOut != "" {
		f, err := os.Create(*htmlOut)
		if err != nil {
			log.Fatal(err)
		}
		if err := ascope.RenderHTML(f, prof, spectrum); err != nil {
			f.Close()
			log.Fatal(err)
		}
		if err := f.Close(); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s", *htmlOut)
	}
}

// readPulses transcodes count pulses after skipping skip of them.
func readPulses(path string, cfg *config.Config, skip, count int) ([]*transcode.Pulse, modes.Metadata, error) {
	var meta modes.Metadata
	f, err := os.Open(path)
	if err != nil {
		return nil, meta, err
	}
	defer f.Close()

	b := transcode.NewBuilder(transcode.Options{Gains: cfg.Gains(), Site: cfg.Site()})
	rd := gamic.NewReader(bufio.NewReader(f))
	var pulses []*transcode.Pulse
	for i := 0; len(pulses) < count; i++ {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, meta, err
		}
		if i == skip {
			meta = b.Classify(rec)
		}
		p, err := b.BuildPulse(rec, meta)
		if err != nil {
			return nil, meta, err
		}
		if i >= skip {
			pulses = append(pulses, p)
		}
	}
	if len(pulses) < 2 {
		return nil, meta, errors.New("need at least two pulses after -skip")
	}
	return pulses, meta, nil
}
