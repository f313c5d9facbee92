package kmeans

import (
	"math"
	"math/rand"
)

const (
	DefaultIterations = 100
	DefaultSeed       = 42
)

type Options struct {
	K          int
	Iterations int
	Seed       int64
}

type Result struct {
	Assignments []int
	Centers     [][]float64
	Iterations  int
}

// Fit clusters samples with Lloyd's algorithm. K is clamped to [1, n]; the
// initial centers are k distinct samples drawn with a seeded generator, so
// equal inputs always give equal assignments. A cluster that loses all its
// members is reseeded from a random sample.
func Fit(samples [][]float64, opts Options) Result {
	if opts.Iterations <= 0 {
		opts.Iterations = DefaultIterations
	}
	if opts.Seed == 0 {
		opts.Seed = DefaultSeed
	}

	n := len(samples)
	if n == 0 {
		return Result{Assignments: []int{}}
	}
	k := ClampK(opts.K, n)
	rng := rand.New(rand.NewSource(opts.Seed))

	centers := make([][]float64, k)
	for j, idx := range rng.Perm(n)[:k] {
		centers[j] = append([]float64(nil), samples[idx]...)
	}

	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}

	iter := 0
	for iter < opts.Iterations {
		iter++
		changed := false
		for i, sample := range samples {
			best := nearest(centers, sample)
			if best != assign[i] {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		updateCenters(centers, samples, assign, rng)
	}

	return Result{Assignments: assign, Centers: centers, Iterations: iter}
}

// ClampK bounds k to [1, n]. With no samples it returns 0.
func ClampK(k, n int) int {
	if n <= 0 {
		return 0
	}
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

func nearest(centers [][]float64, sample []float64) int {
	best, bestDist := 0, math.Inf(1)
	for j, c := range centers {
		if d := squaredDistance(c, sample); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

func updateCenters(centers [][]float64, samples [][]float64, assign []int, rng *rand.Rand) {
	dim := len(samples[0])
	sums := make([][]float64, len(centers))
	counts := make([]int, len(centers))
	for j := range sums {
		sums[j] = make([]float64, dim)
	}
	for i, sample := range samples {
		j := assign[i]
		counts[j]++
		for d := 0; d < dim; d++ {
			sums[j][d] += sample[d]
		}
	}
	for j := range centers {
		if counts[j] == 0 {
			centers[j] = append([]float64(nil), samples[rng.Intn(len(samples))]...)
			continue
		}
		for d := 0; d < dim; d++ {
			centers[j][d] = sums[j][d] / float64(counts[j])
		}
	}
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

// Standardize rescales each column to zero mean and unit population
// variance in place. Constant columns become all zeros.
func Standardize(samples [][]float64) {
	if len(samples) == 0 {
		return
	}
	n := float64(len(samples))
	for d := range samples[0] {
		var mean float64
		for _, s := range samples {
			mean += s[d]
		}
		mean /= n

		var variance float64
		for _, s := range samples {
			diff := s[d] - mean
			variance += diff * diff
		}
		sd := math.Sqrt(variance / n)

		for _, s := range samples {
			if sd == 0 || math.IsNaN(sd) {
				s[d] = 0
			} else {
				s[d] = (s[d] - mean) / sd
			}
		}
	}
}
