package sweep

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/banshee-data/power.report/internal/gsp"
	"github.com/banshee-data/power.report/internal/monitoring"
	"github.com/banshee-data/power.report/internal/timeutil"
)

// ComboResult is the outcome of one parameter combination.
type ComboResult struct {
	Config        gsp.Config    `json:"config"`
	NumAppliances int           `json:"num_appliances"`
	Activations   int           `json:"activations"`
	Coverage      float64       `json:"coverage"` // share of event step magnitude explained by matched cycles
	SolveFailures int           `json:"solve_failures"`
	Message       string        `json:"message,omitempty"`
	Err           string        `json:"error,omitempty"`
	Duration      time.Duration `json:"duration_ns"`
}

// Runner evaluates configurations concurrently.
type Runner struct {
	// Workers is the number of concurrent runs. Zero means GOMAXPROCS.
	Workers int
	Clock   timeutil.Clock
}

// Run evaluates every config against samples. Results are returned in the
// order of configs. A cancelled context stops scheduling new combinations;
// those not run carry the context error.
func (r Runner) Run(ctx context.Context, samples []gsp.PowerSample, configs []gsp.Config) []ComboResult {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	clock := r.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	sorted := gsp.SortSamples(samples)
	delta := gsp.DeltaSeries(sorted)

	results := make([]ComboResult, len(configs))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = evaluate(sorted, delta, configs[i], clock)
			}
		}()
	}

	next := 0
schedule:
	for ; next < len(configs); next++ {
		select {
		case <-ctx.Done():
			break schedule
		case jobs <- next:
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(configs); i++ {
		results[i] = ComboResult{Config: configs[i], Err: ctx.Err().Error()}
	}
	if next < len(configs) {
		monitoring.Logf("sweep: stopped after %d/%d combinations: %v", next, len(configs), ctx.Err())
	}
	return results
}

func evaluate(samples []gsp.PowerSample, delta []float64, cfg gsp.Config, clock timeutil.Clock) ComboResult {
	start := clock.Now()
	res, err := gsp.Disaggregate(samples, cfg)
	cr := ComboResult{Config: cfg, Duration: clock.Since(start)}
	if err != nil {
		cr.Err = err.Error()
		return cr
	}
	cr.NumAppliances = res.NumAppliances
	cr.Message = res.Message
	cr.SolveFailures = res.Stats.SolveFailures
	for _, a := range res.Appliances {
		cr.Activations += a.Activations
	}
	cr.Coverage = Coverage(delta, cfg, res)
	return cr
}

// Coverage is the share of total event step magnitude, |delta| over all
// threshold-crossing indices, that belongs to an ON or OFF of a matched
// cycle. It is 0 when there are no events.
func Coverage(delta []float64, cfg gsp.Config, res *gsp.Result) float64 {
	events := gsp.DetectEvents(delta, cfg.TPositive, cfg.TNegative)
	total := 0.0
	for _, i := range events.All {
		total += math.Abs(delta[i])
	}
	if total == 0 || res == nil {
		return 0
	}

	used := make(map[int]bool)
	explained := 0.0
	for _, a := range res.Appliances {
		for _, p := range a.EventPairs {
			for _, i := range []int{p.On, p.Off} {
				if !used[i] && i < len(delta) {
					used[i] = true
					explained += math.Abs(delta[i])
				}
			}
		}
	}
	return explained / total
}
