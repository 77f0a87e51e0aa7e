// Package stats summarizes the per-run results of a parameter sweep.
package stats

import "gonum.org/v1/gonum/stat"

// Sample is one sweep run's outcome: the swept parameter value and the
// aggregate throughput it produced, in bytes received per tick.
type Sample struct {
	Value      float64
	Throughput float64
}

// Summary is the mean and sample (n-1, unbiased) standard deviation of a
// set of samples' throughput, plus the sample count.
type Summary struct {
	N        int
	Mean     float64
	StdDev   float64
}

// Summarize computes Mean/StdDev over a set of samples' Throughput field.
func Summarize(samples []Sample) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Throughput
	}
	mean, std := stat.MeanStdDev(values, nil)
	return Summary{N: len(values), Mean: mean, StdDev: std}
}
