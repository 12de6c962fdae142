package testutil

import (
	"errors"
	"sync"

	"tenantgate/internal/tenant/tenantctx"
	"tenantgate/pkg/platform/sentinel"
)

// ConcurrentResult counts the outcomes of RunConcurrent by error class.
type ConcurrentResult struct {
	Successes   int32
	Errors      int32
	NotFounds   int32
	Unavailable int32
	NoTenant    int32
}

func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.NotFounds + r.Unavailable + r.NoTenant
}

func (r *ConcurrentResult) add(err error) {
	switch {
	case err == nil:
		r.Successes++
	case errors.Is(err, sentinel.ErrNotFound):
		r.NotFounds++
	case errors.Is(err, sentinel.ErrUnavailable):
		r.Unavailable++
	case errors.Is(err, tenantctx.ErrNoTenant):
		r.NoTenant++
	default:
		r.Errors++
	}
}

// RunConcurrent calls fn from n goroutines at once and waits for all of them.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result ConcurrentResult
	)
	wg.Add(n)
	for i := range n {
		go func() {
			defer wg.Done()
			err := fn(i)
			mu.Lock()
			result.add(err)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return &result
}
