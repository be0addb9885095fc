package analysis

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/khanhnv2901/nginx-audit/internal/domain/analysis"
)

// FileResult is the outcome of analyzing one file in a batch.
type FileResult struct {
	Path     string
	Run      *analysis.Run
	Err      error
	Duration time.Duration
}

// ResultFunc is called as each file of a batch finishes. It may be called
// concurrently.
type ResultFunc func(result FileResult)

// Runner analyzes several files with bounded concurrency.
type Runner struct {
	Service     *Service
	Concurrency int // Maximum number of files analyzed at once
	RateLimit   int // Files started per second; 0 means unlimited
}

// AnalyzeFiles analyzes every path and returns the results in input order.
// A file that fails to parse does not stop the others.
func (r *Runner) AnalyzeFiles(ctx context.Context, paths []string, fn ResultFunc) []FileResult {
	concurrency := r.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if r.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.RateLimit), r.RateLimit)
	}

	// Worker pool
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]FileResult, len(paths))

	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			result := FileResult{Path: path}
			if err := limiter.Wait(ctx); err != nil {
				result.Err = err
			} else {
				start := time.Now()
				result.Run, result.Err = r.Service.AnalyzeFile(ctx, path)
				result.Duration = time.Since(start)
			}

			results[i] = result
			if fn != nil {
				fn(result)
			}
		}(i, path)
	}

	wg.Wait()
	return results
}
