package report

import (
	"fmt"
	"image/color"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/power.report/internal/gsp"
	"github.com/banshee-data/power.report/internal/units"
)

// WritePNG saves a line plot of the aggregate series with one line per
// appliance. The file format follows the extension of path (png, svg, pdf).
func WritePNG(path string, samples []gsp.PowerSample, result *gsp.Result, o Options) error {
	if len(samples) == 0 {
		return errNoSamples
	}
	samples = gsp.SortSamples(samples)
	unit := o.units()
	loc := o.location()

	p := plot.New()
	p.Title.Text = o.title()
	p.X.Label.Text = "Time"
	p.Y.Label.Text = fmt.Sprintf("Power (%s)", unit)
	p.X.Tick.Marker = plot.TimeTicks{
		Format: "01-02 15:04",
		Time: func(t float64) time.Time {
			return time.Unix(0, int64(t*1e9)).In(loc)
		},
	}

	aggPts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		aggPts[i] = plotter.XY{X: epochSeconds(s.Timestamp), Y: units.ConvertPower(s.Power, unit)}
	}
	aggLine, err := plotter.NewLine(aggPts)
	if err != nil {
		return fmt.Errorf("failed to create aggregate line: %w", err)
	}
	aggLine.Color = color.Gray{Y: 96}
	aggLine.Width = vg.Points(1)
	p.Add(aggLine)
	p.Legend.Add("aggregate", aggLine)

	if result != nil {
		colors := generateColors(len(result.Appliances))
		for i, a := range result.Appliances {
			track := applianceTrack(samples, a)
			pts := make(plotter.XYs, len(samples))
			for j, s := range samples {
				pts[j] = plotter.XY{X: epochSeconds(s.Timestamp), Y: units.ConvertPower(track[j], unit)}
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return fmt.Errorf("failed to create line for appliance %d: %w", a.ID, err)
			}
			line.Color = colors[i]
			line.Width = vg.Points(1)
			p.Add(line)
			p.Legend.Add(applianceLabel(a, unit), line)
		}
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func applianceLabel(a gsp.Appliance, unit string) string {
	return fmt.Sprintf("appliance %d (%.3g %s)", a.ID, units.ConvertPower(a.OnMean, unit), unit)
}

// generateColors creates a palette of distinct colors for appliance lines.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
