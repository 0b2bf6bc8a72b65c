package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/power.report/internal/gsp"
	"github.com/banshee-data/power.report/internal/units"
)

// WriteHTML renders an interactive page: a time-axis line chart with the
// aggregate and one series per appliance, followed by a bar chart of the
// energy attributed to each appliance.
func WriteHTML(w io.Writer, samples []gsp.PowerSample, result *gsp.Result, o Options) error {
	if len(samples) == 0 {
		return errNoSamples
	}
	samples = gsp.SortSamples(samples)
	unit := o.units()

	subtitle := fmt.Sprintf("samples=%d", len(samples))
	if result != nil {
		subtitle = fmt.Sprintf("samples=%d appliances=%d", len(samples), result.NumAppliances)
		if result.Message != "" {
			subtitle += " (" + result.Message + ")"
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: o.title(), Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: o.title(), Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "time", Name: "Time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: fmt.Sprintf("Power (%s)", unit)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)

	aggregate := make([]opts.LineData, len(samples))
	for i, s := range samples {
		aggregate[i] = opts.LineData{Value: []interface{}{s.Timestamp.UnixMilli(), units.ConvertPower(s.Power, unit)}}
	}
	line.AddSeries("aggregate", aggregate, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	var appliances []gsp.Appliance
	if result != nil {
		appliances = result.Appliances
	}
	for _, a := range appliances {
		track := applianceTrack(samples, a)
		data := make([]opts.LineData, len(samples))
		for i, s := range samples {
			data[i] = opts.LineData{Value: []interface{}{s.Timestamp.UnixMilli(), units.ConvertPower(track[i], unit)}}
		}
		line.AddSeries(applianceLabel(a, unit), data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}

	page := components.NewPage().SetPageTitle(o.title())
	page.AddCharts(line)

	if len(appliances) > 0 {
		labels := make([]string, len(appliances))
		energy := make([]opts.BarData, len(appliances))
		for i, a := range appliances {
			labels[i] = fmt.Sprintf("appliance %d", a.ID)
			energy[i] = opts.BarData{Value: units.ConvertPower(a.EnergyWh, unit)}
		}
		bar := charts.NewBar()
		bar.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
			charts.WithTitleOpts(opts.Title{Title: "Energy per appliance"}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithYAxisOpts(opts.YAxis{Name: units.EnergyLabel(unit)}),
		)
		bar.SetXAxis(labels).AddSeries("energy", energy,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
		page.AddCharts(bar)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render HTML report: %w", err)
	}
	return nil
}
