// Command ratesweep runs a base configuration across a set of rate_limit
// values in parallel and reports aggregate throughput statistics per
// value, replacing the task-graph shell pipeline the original tooling
// used (sweep.py driving bin/ratesim + a log parser) with a single
// in-process sweep over this package's own simulation loop.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/nicmcd/ratesim/internal/config"
	"github.com/nicmcd/ratesim/internal/engine"
	"github.com/nicmcd/ratesim/internal/stats"
	"github.com/nicmcd/ratesim/internal/topology"
	"github.com/nicmcd/ratesim/internal/tracelog"
)

var (
	configFile = flag.String("config", "", "path to a base JSON or YAML run configuration")
	valsFlag   = flag.String("vals", "", "comma-separated rate_limit values to sweep")
	cores      = flag.Int("cores", runtime.NumCPU(), "number of sweep runs to execute concurrently")
)

func main() {
	flag.Parse()
	if *configFile == "" || *valsFlag == "" {
		fmt.Fprintln(os.Stderr, "ratesweep: -config and -vals are required")
		os.Exit(1)
	}

	vals, err := parseVals(*valsFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ratesweep:", err)
		os.Exit(1)
	}

	base, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ratesweep:", err)
		os.Exit(1)
	}

	samples, err := sweep(base, vals, *cores)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ratesweep:", err)
		os.Exit(1)
	}

	for _, s := range samples {
		fmt.Printf("rate_limit=%v throughput=%v\n", s.Value, s.Throughput)
	}
	summary := stats.Summarize(samples)
	fmt.Printf("n=%d mean=%v stddev=%v\n", summary.N, summary.Mean, summary.StdDev)
}

func parseVals(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	vals := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid sweep value %q: %w", p, err)
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// sweep runs one simulation per value in vals, at most "cores" at a time,
// and returns each run's throughput sample.
func sweep(base *config.Config, vals []float64, cores int) ([]stats.Sample, error) {
	if cores < 1 {
		cores = 1
	}
	samples := make([]stats.Sample, len(vals))
	errs := make([]error, len(vals))

	sem := make(chan struct{}, cores)
	var wg sync.WaitGroup
	for i, v := range vals {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v float64) {
			defer wg.Done()
			defer func() { <-sem }()
			samples[i], errs[i] = runOne(base, v)
		}(i, v)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return samples, nil
}

func runOne(base *config.Config, rateLimit float64) (stats.Sample, error) {
	cfg := *base
	cfg.RateLimit = rateLimit
	if err := cfg.Validate(); err != nil {
		return stats.Sample{}, err
	}

	log, err := tracelog.New("", 0)
	if err != nil {
		return stats.Sample{}, err
	}
	defer log.Close()

	eng := engine.New(int(cfg.Threads))
	top, err := topology.Build(&cfg, eng, log)
	if err != nil {
		return stats.Sample{}, err
	}
	eng.Run()

	var bytes uint64
	for _, r := range top.Receivers {
		bytes += r.BytesRecv
	}
	finalTick := eng.Now().Seconds()
	throughput := 0.0
	if finalTick > 0 {
		throughput = float64(bytes) / finalTick
	}
	return stats.Sample{Value: rateLimit, Throughput: throughput}, nil
}
