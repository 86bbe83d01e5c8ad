// Command iwrf-dump prints the packets of an IWRF time series file and
// checks that packet sequence numbers increase and pulses carry a payload
// of the advertised size.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/banshee-data/gamic2iwrf/internal/iwrf"
)

type options struct {
	Pulses bool // print one line per pulse
	Gates  int  // print decoded IQ of the first Gates gates of each pulse
}

type report struct {
	Packets    int
	Metadata   int
	Pulses     int
	Unknown    int
	SeqErrors  int
	SizeErrors int
	First      time.Time
	Last       time.Time
}

func packetTime(info iwrf.PacketInfo) time.Time {
	return time.Unix(info.TimeSecsUTC, int64(info.TimeNanoSecs)).UTC()
}

func dump(w io.Writer, r io.Reader, opts options) (report, error) {
	var rep report
	rd := iwrf.NewReader(r)
	var lastSeq int64
	for {
		f, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return rep, nil
		}
		if err != nil {
			return rep, fmt.Errorf("packet %d: %w", rep.Packets+1, err)
		}
		rep.Packets++
		if rep.Packets > 1 && f.Info.SeqNum <= lastSeq {
			rep.SeqErrors++
			fmt.Fprintf(w, "! seq %d after %d\n", f.Info.SeqNum, lastSeq)
		}
		lastSeq = f.Info.SeqNum

		switch p := f.Packet.(type) {
		case *iwrf.RadarInfo:
			rep.Metadata++
			fmt.Fprintf(w, "seq %d RADAR_INFO name=%q site=%q lat=%.4f lon=%.4f alt=%.1f wavelength=%.2fcm\n",
				f.Info.SeqNum, iwrf.Name(p.RadarName), iwrf.Name(p.SiteName),
				p.LatitudeDeg, p.LongitudeDeg, p.AltitudeM, p.WavelengthCm)
		case *iwrf.TsProcessing:
			fmt.Fprintf(w, "seq %d TS_PROCESSING xmit_rcv=%d pol=%d prf=%s prt=%.1fus prt2=%.1fus pw=%.2fus start=%.1fm spacing=%.1fm\n",
				f.Info.SeqNum, p.XmitRcvMode, p.PolMode, p.PrfMode, p.PrtUsec, p.Prt2Usec,
				p.PulseWidthUs, p.StartRangeM, p.GateSpacingM)
		case *iwrf.Calibration:
			fmt.Fprintf(w, "seq %d CALIBRATION pw=%.2fus noise_hc=%.1f noise_vc=%.1f\n",
				f.Info.SeqNum, p.PulseWidthUs, p.NoiseDbm[iwrf.ChanHC], p.NoiseDbm[iwrf.ChanVC])
		case *iwrf.PulseHeader:
			rep.Pulses++
			t := packetTime(f.Info)
			if rep.First.IsZero() {
				rep.First = t
			}
			rep.Last = t
			want := int(p.NData) * p.IQEncoding.BytesPerValue()
			if len(f.Payload) != want {
				rep.SizeErrors++
				fmt.Fprintf(w, "! pulse %d payload %d bytes, want %d\n", p.PulseSeqNum, len(f.Payload), want)
			}
			if opts.Pulses {
				fmt.Fprintf(w, "seq %d PULSE %d %s az=%.3f el=%.3f prt=%.6f gates=%d ch=%d enc=%d burst_diff=%.2f\n",
					f.Info.SeqNum, p.PulseSeqNum, t.Format("15:04:05.000000"), p.Azimuth, p.Elevation,
					p.Prt, p.NGates, p.NChannels, p.IQEncoding, p.BurstArgDiff[0])
			}
			if opts.Gates > 0 {
				if err := printIQ(w, p, f.Payload, opts.Gates); err != nil {
					return rep, err
				}
			}
		default:
			rep.Unknown++
			fmt.Fprintf(w, "seq %d unknown packet id %#x, %d bytes\n", f.Info.SeqNum, f.Info.ID, f.Info.LenBytes)
		}
	}
}

func printIQ(w io.Writer, p *iwrf.PulseHeader, payload []byte, gates int) error {
	iq, err := iwrf.Decode(payload, p.IQEncoding, p.Scale, p.Offset)
	if err != nil {
		return fmt.Errorf("pulse %d: %w", p.PulseSeqNum, err)
	}
	n := min(gates, int(p.NGates))
	for c := 0; c < int(p.NChannels) && c < iwrf.MaxChan; c++ {
		off := int(p.IQOffset[c])
		fmt.Fprintf(w, "  ch%d", c)
		for g := 0; g < n && off+2*g+1 < len(iq); g++ {
			fmt.Fprintf(w, " (%.4g,%.4g)", iq[off+2*g], iq[off+2*g+1])
		}
		fmt.Fprintln(w)
	}
	return nil
}

func main() {
	var opts options
	flag.BoolVar(&opts.Pulses, "pulses", false, "print one line per pulse")
	flag.IntVar(&opts.Gates, "iq", 0, "print decoded IQ for this many gates of each pulse")
	flag.Parse()
	if flag.NArg() == 0 {
		log.Fatalf("usage: %s [flags] <file.iwrf_ts>...", os.Args[0])
	}

	failed := false
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	for _, path := range flag.Args() {
		f, err := os.Open(path)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Fprintf(out, "== %s\n", path)
		rep, err := dump(out, bufio.NewReader(f), opts)
		f.Close()
		fmt.Fprintf(out, "%d packets: %d metadata blocks, %d pulses, %d unknown; %s to %s\n",
			rep.Packets, rep.Metadata, rep.Pulses, rep.Unknown,
			rep.First.Format(time.RFC3339Nano), rep.Last.Format(time.RFC3339Nano))
		if err != nil {
			fmt.Fprintf(out, "! %v\n", err)
			failed = true
		}
		if rep.SeqErrors > 0 || rep.SizeErrors > 0 {
			failed = true
		}
	}
	if failed {
		out.Flush()
		os.Exit(1)
	}
}
