package ascope

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

func rangeLabels(km []float64) []string {
	out := make([]string, len(km))
	for i, v := range km {
		out[i] = fmt.Sprintf("%.3f", v)
	}
	return out
}

func lineData(v []float64) []opts.LineData {
	out := make([]opts.LineData, len(v))
	for i, x := range v {
		out[i] = opts.LineData{Value: x}
	}
	return out
}

func profileChart(p Profile) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "A-scope", Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Power", Subtitle: title(p)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Range (km)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Power (dB)", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(rangeLabels(p.RangeKm))
	for _, ch := range p.Channels {
		line.AddSeries(ch.Name, lineData(ch.PowerDb))
	}
	return line
}

func phaseChart(p Profile) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Phase"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Range (km)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Phase (deg)", Min: -180, Max: 180}),
	)
	line.SetXAxis(rangeLabels(p.RangeKm))
	for _, ch := range p.Channels {
		line.AddSeries(ch.Name, lineData(ch.PhaseDeg))
	}
	return line
}

func spectrumChart(s Spectrum) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Doppler spectrum",
			Subtitle: fmt.Sprintf("%s gate %d (%.2f km), peak %.1f Hz", s.Channel, s.Gate, s.RangeKm, s.PeakHz),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frequency (Hz)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Power (dB)"}),
	)
	labels := make([]string, len(s.FreqHz))
	for i, f := range s.FreqHz {
		labels[i] = fmt.Sprintf("%.1f", f)
	}
	line.SetXAxis(labels)
	line.AddSeries(s.Channel, lineData(s.PowerDb))
	return line
}

// RenderHTML writes an interactive page with the power and phase traces of
// p and, when s is not nil, its Doppler spectrum.
func RenderHTML(w io.Writer, p Profile, s *Spectrum) error {
	page := components.NewPage()
	page.PageTitle = "A-scope"
	page.AddCharts(profileChart(p), phaseChart(p))
	if s != nil {
		page.AddCharts(spectrumChart(*s))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}
