// Command gen-gamic writes synthetic GAMIC pulse files for testing the
// transcoder: receiver noise plus one point target on a scanning antenna.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/gamic2iwrf/internal/gamic"
	"github.com/banshee-data/gamic2iwrf/internal/synth"
)

func parseOps(s string) (gamic.OpsType, error) {
	switch s {
	case "dual":
		return gamic.OpsDualPol, nil
	case "h":
		return gamic.OpsHorizontalOnly, nil
	case "v":
		return gamic.OpsVerticalOnly, nil
	}
	return gamic.OpsUnknown, fmt.Errorf("unknown polarization %q (want dual, h or v)", s)
}

func parseScan(s string) (uint16, error) {
	switch s {
	case "ppi":
		return gamic.ScanPPI, nil
	case "rhi":
		return gamic.ScanRHI, nil
	case "sector":
		return gamic.ScanSector, nil
	case "pointing":
		return gamic.ScanPointing, nil
	}
	return 0, fmt.Errorf("unknown scan type %q (want ppi, rhi, sector or pointing)", s)
}

func main() {
	def := synth.DefaultParams()
	outDir := flag.String("o", "gamic-synth", "output directory")
	files := flag.Int("files", 1, "number of files")
	pulses := flag.Int("n", 1000, "pulses per file")
	start := flag.String("start", def.Start.Format(time.RFC3339), "time of the first pulse (RFC3339)")
	ops := flag.String("pol", "dual", "polarization: dual, h or v")
	scan := flag.String("scan", "ppi", "scan type: ppi, rhi, sector or pointing")
	gates := flag.Int("gates", def.NGates, "gates per pulse")
	prf := flag.Float64("prf", def.PrfHz, "PRF in Hz")
	lowPrf := flag.Float64("low-prf", 0, "second PRF in Hz for a staggered stream (0 disables)")
	pw := flag.Uint("pw-index", 0, "pulse width index written to the header")
	rate := flag.Float64("rate", def.RateDegS, "antenna rate in deg/s")
	az := flag.Float64("az", def.StartAzDeg, "start azimuth in degrees")
	el := flag.Float64("el", def.StartElDeg, "start elevation in degrees")
	targetGate := flag.Int("target-gate", def.TargetGate, "gate of the point target")
	targetDb := flag.Float64("target-db", def.TargetPowerDb, "target power in dB")
	doppler := flag.Float64("doppler", def.DopplerHz, "target Doppler shift in Hz")
	noiseDb := flag.Float64("noise-db", def.NoisePowerDb, "noise power in dB")
	seed := flag.Uint64("seed", def.Seed, "random seed")
	flag.Parse()

	p := def
	var err error
	if p.Start, err = time.Parse(time.RFC3339, *start); err != nil {
		log.Fatalf("Invalid -start: %v", err)
	}
	if p.Ops, err = parseOps(*ops); err != nil {
		log.Fatal(err)
	}
	if p.ScanType, err = parseScan(*scan); err != nil {
		log.Fatal(err)
	}
	p.NGates = *gates
	p.PrfHz = *prf
	p.LowPrfHz = *lowPrf
	p.PwIndex = uint16(*pw)
	p.RateDegS = *rate
	p.StartAzDeg = *az
	p.StartElDeg = *el
	p.TargetGate = *targetGate
	p.TargetPowerDb = *targetDb
	p.DopplerHz = *doppler
	p.NoisePowerDb = *noiseDb
	p.Seed = *seed

	gen, err := synth.New(p)
	if err != nil {
		log.Fatal(err)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Could not create %s: %v", *outDir, err)
	}

	// One generator across files keeps time and pulse counters continuous.
	for i := 0; i < *files; i++ {
		name := filepath.Join(*outDir, gen.Time().UTC().Format("20060102_150405.000")+".bin")
		if err := writeFile(name, gen, *pulses); err != nil {
			log.Fatalf("Could not write %s: %v", name, err)
		}
		log.Printf("wrote %s (%d pulses)", name, *pulses)
	}
}

func writeFile(name string, gen *synth.Generator, n int) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	if err := gen.WriteTo(bw, n); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
