package ascope

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot size of the PNG views.
const (
	plotWidth  = 12 * vg.Inch
	plotHeight = 5 * vg.Inch
)

var channelColors = map[string]color.Color{
	"H": color.RGBA{R: 31, G: 119, B: 180, A: 255},
	"V": color.RGBA{R: 214, G: 39, B: 40, A: 255},
}

func title(p Profile) string {
	return fmt.Sprintf("%s  az %.2f el %.2f  (%d pulses)",
		p.Time.UTC().Format("2006-01-02 15:04:05.000"), p.Azimuth, p.Elevation, p.Pulses)
}

// PowerPlot draws power against range, one line per channel.
func PowerPlot(p Profile) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = title(p)
	pl.X.Label.Text = "Range (km)"
	pl.Y.Label.Text = "Power (dB)"
	pl.Add(plotter.NewGrid())

	for _, ch := range p.Channels {
		pts := make(plotter.XYs, 0, len(ch.PowerDb))
		for k, v := range ch.PowerDb {
			if v <= FloorDb {
				continue
			}
			pts = append(pts, plotter.XY{X: p.RangeKm[k], Y: v})
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		if c, ok := channelColors[ch.Name]; ok {
			line.Color = c
		}
		line.Width = vg.Points(1)
		pl.Add(line)
		pl.Legend.Add(ch.Name, line)
	}
	pl.Legend.Top = true
	pl.Legend.Left = false
	pl.Legend.XOffs = -10
	pl.Legend.YOffs = -10
	return pl, nil
}

// SpectrumPlot draws a Doppler spectrum.
func SpectrumPlot(s Spectrum) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("Doppler spectrum %s gate %d (%.2f km), %d pulses", s.Channel, s.Gate, s.RangeKm, s.NSamples)
	pl.X.Label.Text = "Frequency (Hz)"
	pl.Y.Label.Text = "Power (dB)"
	pl.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(s.FreqHz))
	for i := range pts {
		pts[i] = plotter.XY{X: s.FreqHz[i], Y: s.PowerDb[i]}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	if c, ok := channelColors[s.Channel]; ok {
		line.Color = c
	}
	line.Width = vg.Points(1)
	pl.Add(line)
	return pl, nil
}

// WritePNG renders pl as a PNG.
func WritePNG(w io.Writer, pl *plot.Plot) error {
	wt, err := pl.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// SavePNG renders pl to path. The image format follows the extension.
func SavePNG(path string, pl *plot.Plot) error {
	if err := pl.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}
