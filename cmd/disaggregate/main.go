// Command disaggregate splits an aggregate power series into per-appliance
// consumption using training-less graph signal processing.
//
// Samples come from a CSV/JSON export (-input) or from a series stored in
// SQLite (-db -series). The result is written as JSON and can optionally
// be stored, plotted and exported as Prometheus metrics.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/power.report/internal/config"
	"github.com/banshee-data/power.report/internal/db"
	"github.com/banshee-data/power.report/internal/gsp"
	"github.com/banshee-data/power.report/internal/meterdata"
	"github.com/banshee-data/power.report/internal/metrics"
	"github.com/banshee-data/power.report/internal/monitoring"
	"github.com/banshee-data/power.report/internal/report"
	"github.com/banshee-data/power.report/internal/security"
	"github.com/banshee-data/power.report/internal/timeutil"
	"github.com/banshee-data/power.report/internal/units"
	"github.com/banshee-data/power.report/internal/version"
)

type options struct {
	Input      string
	DBPath     string
	SeriesID   string
	ConfigPath string
	From, To   string

	Sigma         float64
	Ri            float64
	TPositive     float64
	TNegative     float64
	Alpha         float64
	Beta          float64
	InstanceLimit int
	Units         string
	Timezone      string

	Output          string
	Store           bool
	ListRuns        bool
	PlotPath        string
	HTMLPath        string
	ReportDir       string
	MetricsTextfile string

	Verbose     bool
	ShowVersion bool

	// set records which flags were given explicitly.
	set map[string]bool
}

func parseFlags(args []string) (options, error) {
	d := gsp.DefaultConfig()
	var o options
	fs := flag.NewFlagSet("disaggregate", flag.ContinueOnError)

	fs.StringVar(&o.Input, "input", "", "CSV or JSON file of aggregate power readings")
	fs.StringVar(&o.DBPath, "db", "", "SQLite database for stored series and runs")
	fs.StringVar(&o.SeriesID, "series", "mains", "Series ID in the database")
	fs.StringVar(&o.ConfigPath, "config", "", "JSON tuning file (defaults to built-in values)")
	fs.StringVar(&o.From, "from", "", "Start of the stored range (RFC 3339, inclusive)")
	fs.StringVar(&o.To, "to", "", "End of the stored range (RFC 3339, exclusive)")

	fs.Float64Var(&o.Sigma, "sigma", d.Sigma, "Gaussian kernel width in watts")
	fs.Float64Var(&o.Ri, "ri", d.Ri, "Maximum cluster coefficient of variation")
	fs.Float64Var(&o.TPositive, "tpos", d.TPositive, "Positive event threshold in watts")
	fs.Float64Var(&o.TNegative, "tneg", d.TNegative, "Negative event threshold in watts")
	fs.Float64Var(&o.Alpha, "alpha", d.Alpha, "Magnitude weight when choosing an OFF event")
	fs.Float64Var(&o.Beta, "beta", d.Beta, "Temporal weight when choosing an OFF event")
	fs.IntVar(&o.InstanceLimit, "instance-limit", d.InstanceLimit, "Minimum events per appliance cluster")
	fs.StringVar(&o.Units, "units", units.W, "Display units: "+units.GetValidUnitsString())
	fs.StringVar(&o.Timezone, "tz", "UTC", "Timezone for input timestamps without an offset")

	fs.StringVar(&o.Output, "output", "", "Write the JSON result here instead of stdout")
	fs.BoolVar(&o.Store, "store", false, "Store the input samples and the run in -db")
	fs.BoolVar(&o.ListRuns, "list-runs", false, "List stored runs for -series and exit")
	fs.StringVar(&o.PlotPath, "plot", "", "Write a plot of the result (png, svg or pdf)")
	fs.StringVar(&o.HTMLPath, "html", "", "Write an interactive HTML report")
	fs.StringVar(&o.ReportDir, "report-dir", "", "Write JSON, PNG and HTML named after -series into this directory")
	fs.StringVar(&o.MetricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this textfile")

	fs.BoolVar(&o.Verbose, "verbose", false, "Log per-stage pipeline detail to stderr")
	fs.BoolVar(&o.ShowVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, o.validate()
}

func (o options) validate() error {
	if o.ShowVersion {
		return nil
	}
	if o.ListRuns {
		if o.DBPath == "" {
			return errors.New("-list-runs requires -db")
		}
		return nil
	}
	if o.Input == "" && o.DBPath == "" {
		return errors.New("one of -input or -db is required")
	}
	if o.Store && o.DBPath == "" {
		return errors.New("-store requires -db")
	}
	return nil
}

// tuning loads the tuning file, if any, and applies explicitly set flags
// on top of it.
func (o options) tuning() (*config.TuningConfig, error) {
	tc := config.DefaultTuningConfig()
	if o.ConfigPath != "" {
		loaded, err := config.LoadTuningConfig(o.ConfigPath)
		if err != nil {
			return nil, err
		}
		tc = loaded
	}

	overrides := map[string]func(){
		"sigma":          func() { tc.Sigma = &o.Sigma },
		"ri":             func() { tc.Ri = &o.Ri },
		"tpos":           func() { tc.TPositive = &o.TPositive },
		"tneg":           func() { tc.TNegative = &o.TNegative },
		"alpha":          func() { tc.Alpha = &o.Alpha },
		"beta":           func() { tc.Beta = &o.Beta },
		"instance-limit": func() { tc.InstanceLimit = &o.InstanceLimit },
		"units":          func() { tc.DisplayUnits = &o.Units },
		"tz":             func() { tc.Timezone = &o.Timezone },
	}
	for name, apply := range overrides {
		if o.set[name] {
			apply()
		}
	}
	if err := tc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return tc, nil
}

func main() {
	log.SetFlags(log.LstdFlags)
	o, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("disaggregate: %v", err)
	}
	if o.ShowVersion {
		fmt.Println(version.String("disaggregate"))
		return
	}

	if o.Verbose {
		gsp.SetLogWriters(os.Stderr, os.Stderr, os.Stderr)
	} else {
		gsp.SetLogWriters(monitoring.Writer("gsp: "), nil, nil)
	}

	if err := run(o, os.Stdout, timeutil.RealClock{}); err != nil {
		log.Fatalf("disaggregate: %v", err)
	}
}

func run(o options, stdout io.Writer, clock timeutil.Clock) error {
	tc, err := o.tuning()
	if err != nil {
		return err
	}
	loc, err := units.Location(tc.GetTimezone())
	if err != nil {
		return err
	}

	var store *db.DB
	if o.DBPath != "" {
		store, err = db.NewDBWithClock(o.DBPath, clock)
		if err != nil {
			return err
		}
		defer store.Close()
	}
	if o.ListRuns {
		return listRuns(store, o.SeriesID, stdout)
	}

	samples, err := loadSamples(o, store, loc)
	if err != nil {
		return err
	}
	if o.ReportDir != "" {
		if o, err = o.withReportDir(clock.Now()); err != nil {
			return err
		}
	}
	log.Printf("Loaded %d samples", len(samples))

	var recorder *metrics.Recorder
	registry := prometheus.NewRegistry()
	if o.MetricsTextfile != "" {
		if recorder, err = metrics.NewRecorder(registry); err != nil {
			return err
		}
	}

	start := clock.Now()
	result, err := gsp.Disaggregate(samples, tc.ToGSPConfig())
	elapsed := clock.Since(start)
	if err != nil {
		recorder.ObserveError(elapsed)
		writeMetrics(o.MetricsTextfile, registry)
		return err
	}
	recorder.Observe(result, elapsed)

	if err := writeResult(o.Output, stdout, result); err != nil {
		return err
	}

	if o.Store {
		runID, err := store.SaveRun(o.SeriesID, result)
		if err != nil {
			return err
		}
		log.Printf("Stored run %s for series %q", runID, o.SeriesID)
	}

	ropts := report.Options{
		Title:    fmt.Sprintf("%s: %d appliances", o.SeriesID, result.NumAppliances),
		Units:    tc.GetDisplayUnits(),
		Location: loc,
	}
	if o.PlotPath != "" {
		if err := report.WritePNG(o.PlotPath, samples, result, ropts); err != nil {
			return err
		}
		log.Printf("Plot written to %s", o.PlotPath)
	}
	if o.HTMLPath != "" {
		if err := writeHTML(o.HTMLPath, samples, result, ropts); err != nil {
			return err
		}
		log.Printf("HTML report written to %s", o.HTMLPath)
	}
	writeMetrics(o.MetricsTextfile, registry)

	logSummary(result, tc.GetDisplayUnits(), elapsed)
	return nil
}

// withReportDir fills in any output path not given explicitly with a file
// in ReportDir named after the series and the run time.
func (o options) withReportDir(now time.Time) (options, error) {
	name := o.SeriesID + "-" + now.UTC().Format("20060102-150405")
	targets := []struct {
		path *string
		ext  string
	}{
		{&o.Output, ".json"},
		{&o.PlotPath, ".png"},
		{&o.HTMLPath, ".html"},
	}
	for _, t := range targets {
		if *t.path != "" {
			continue
		}
		p, err := security.OutputPath(o.ReportDir, name, t.ext)
		if err != nil {
			return o, fmt.Errorf("-report-dir: %w", err)
		}
		*t.path = p
	}
	return o, nil
}

func loadSamples(o options, store *db.DB, loc *time.Location) ([]gsp.PowerSample, error) {
	if o.Input != "" {
		samples, err := meterdata.LoadFile(o.Input, meterdata.Options{Location: loc})
		if err != nil {
			return nil, err
		}
		if o.Store {
			if err := store.RecordSamples(o.SeriesID, samples); err != nil {
				return nil, err
			}
		}
		return samples, nil
	}

	var from, to time.Time
	var err error
	if o.From != "" {
		if from, err = meterdata.ParseTimestamp(o.From, loc); err != nil {
			return nil, fmt.Errorf("-from: %w", err)
		}
	}
	if o.To != "" {
		if to, err = meterdata.ParseTimestamp(o.To, loc); err != nil {
			return nil, fmt.Errorf("-to: %w", err)
		}
	}
	return store.Samples(o.SeriesID, from, to)
}

func writeResult(path string, stdout io.Writer, result *gsp.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(filepath.Clean(path), data, 0644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	log.Printf("Result written to %s", path)
	return nil
}

func writeHTML(path string, samples []gsp.PowerSample, result *gsp.Result, ropts report.Options) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := report.WriteHTML(f, samples, result, ropts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeMetrics is best effort: a failed export does not fail the run.
func writeMetrics(path string, g prometheus.Gatherer) {
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path, g); err != nil {
		log.Printf("Warning: %v", err)
	}
}

func listRuns(store *db.DB, seriesID string, w io.Writer) error {
	runs, err := store.ListRuns(seriesID)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSERIES\tCREATED\tAPPLIANCES\tMESSAGE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.RunID, r.SeriesID, r.CreatedAt.Format(time.RFC3339), r.NumAppliances, r.Message)
	}
	return tw.Flush()
}

func logSummary(result *gsp.Result, unit string, elapsed time.Duration) {
	if result.NumAppliances == 0 {
		log.Printf("No appliances found: %s (%v)", result.Message, elapsed.Round(time.Millisecond))
		return
	}
	log.Printf("Found %d appliances in %v", result.NumAppliances, elapsed.Round(time.Millisecond))
	for _, a := range result.Appliances {
		log.Printf("  appliance %d: %d activations, avg %.2f %s, max %.2f %s, %.3f %s",
			a.ID, a.Activations,
			units.ConvertPower(a.AvgPower, unit), unit,
			units.ConvertPower(a.MaxPower, unit), unit,
			units.ConvertPower(a.EnergyWh, unit), units.EnergyLabel(unit))
	}
}
