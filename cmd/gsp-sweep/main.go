// Command gsp-sweep runs the disaggregation pipeline over a grid of sigma,
// ri and event threshold values and ranks the combinations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/power.report/internal/config"
	"github.com/banshee-data/power.report/internal/gsp"
	"github.com/banshee-data/power.report/internal/meterdata"
	"github.com/banshee-data/power.report/internal/monitoring"
	"github.com/banshee-data/power.report/internal/security"
	"github.com/banshee-data/power.report/internal/sweep"
	"github.com/banshee-data/power.report/internal/timeutil"
	"github.com/banshee-data/power.report/internal/units"
	"github.com/banshee-data/power.report/internal/version"
)

type options struct {
	Input      string
	ConfigPath string
	SigmaList  string
	RiList     string
	TPosList   string
	Out        string
	Top        int
	Workers    int
	Verbose    bool

	ShowVersion bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("gsp-sweep", flag.ContinueOnError)

	fs.StringVar(&o.Input, "input", "", "CSV or JSON file of aggregate power readings")
	fs.StringVar(&o.ConfigPath, "config", "", "JSON tuning file used as the sweep base")
	fs.StringVar(&o.SigmaList, "sigma", "", "Comma-separated sigma values (e.g. 10,20,40) or range start:end:step")
	fs.StringVar(&o.RiList, "ri", "", "Comma-separated ri values or range start:end:step")
	fs.StringVar(&o.TPosList, "tpos", "", "Comma-separated positive thresholds or range start:end:step")
	fs.StringVar(&o.Out, "out", "", "Output CSV filename (defaults to gsp-sweep-<input>-<timestamp>.csv)")
	fs.IntVar(&o.Top, "top", 5, "Number of best combinations to log")
	fs.IntVar(&o.Workers, "workers", 0, "Concurrent runs (0 = GOMAXPROCS)")
	fs.BoolVar(&o.Verbose, "verbose", false, "Log gsp solve problems to stderr")
	fs.BoolVar(&o.ShowVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if !o.ShowVersion && o.Input == "" {
		return o, errors.New("-input is required")
	}
	return o, nil
}

func (o options) grid() (sweep.Grid, error) {
	var g sweep.Grid
	var err error
	if g.Sigma, err = sweep.ParseParamList(o.SigmaList); err != nil {
		return g, fmt.Errorf("-sigma: %w", err)
	}
	if g.Ri, err = sweep.ParseParamList(o.RiList); err != nil {
		return g, fmt.Errorf("-ri: %w", err)
	}
	if g.TPositive, err = sweep.ParseParamList(o.TPosList); err != nil {
		return g, fmt.Errorf("-tpos: %w", err)
	}
	return g, nil
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("gsp-sweep: %v", err)
	}
	if o.ShowVersion {
		fmt.Println(version.String("gsp-sweep"))
		return
	}

	// Solve failures repeat across combinations; keep them out of the way
	// unless asked for.
	if o.Verbose {
		gsp.SetLogWriters(os.Stderr, nil, nil)
	} else {
		gsp.SetLogWriters(nil, nil, nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if o.Out == "" {
		o.Out = defaultOutName(o.Input, time.Now())
	}
	if err := run(ctx, o, timeutil.RealClock{}); err != nil {
		log.Fatalf("gsp-sweep: %v", err)
	}
}

func defaultOutName(input string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return fmt.Sprintf("gsp-sweep-%s-%s.csv", security.SanitizeFilename(base), now.Format("20060102-150405"))
}

func run(ctx context.Context, o options, clock timeutil.Clock) error {
	base := config.DefaultTuningConfig()
	if o.ConfigPath != "" {
		loaded, err := config.LoadTuningConfig(o.ConfigPath)
		if err != nil {
			return err
		}
		base = loaded
	}
	loc, err := units.Location(base.GetTimezone())
	if err != nil {
		return err
	}

	grid, err := o.grid()
	if err != nil {
		return err
	}
	configs, err := sweep.Combos(base.ToGSPConfig(), grid)
	if err != nil {
		return err
	}

	samples, err := meterdata.LoadFile(o.Input, meterdata.Options{Location: loc})
	if err != nil {
		return err
	}
	monitoring.Logf("Sweeping %d combinations over %d samples", len(configs), len(samples))

	start := clock.Now()
	results := sweep.Runner{Workers: o.Workers, Clock: clock}.Run(ctx, samples, configs)
	ranked := sweep.RankResults(results, sweep.DefaultObjectiveWeights())
	monitoring.Logf("Sweep finished in %v", clock.Since(start).Round(time.Millisecond))

	if err := writeCSV(o.Out, ranked); err != nil {
		return err
	}
	monitoring.Logf("Results written to %s", o.Out)

	logTop(ranked, o.Top)
	return ctx.Err()
}

func writeCSV(path string, ranked []sweep.ScoredResult) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writeRanked(f, ranked); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeRanked(w io.Writer, ranked []sweep.ScoredResult) error {
	if err := sweep.NewCSVWriter(w).WriteAll(ranked); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

func logTop(ranked []sweep.ScoredResult, n int) {
	if n > len(ranked) {
		n = len(ranked)
	}
	for i := 0; i < n; i++ {
		r := ranked[i]
		if r.Err != "" {
			monitoring.Logf("#%d sigma=%g ri=%g tpos=%g failed: %s", i+1, r.Config.Sigma, r.Config.Ri, r.Config.TPositive, r.Err)
			continue
		}
		monitoring.Logf("#%d score=%.4f sigma=%g ri=%g tpos=%g appliances=%d coverage=%.1f%%",
			i+1, r.Score, r.Config.Sigma, r.Config.Ri, r.Config.TPositive, r.NumAppliances, 100*r.Coverage)
	}
}
