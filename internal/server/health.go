package server

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Probe checks one dependency. It must respect ctx and fail fast.
type Probe func(ctx context.Context) error

// HealthChecker runs independent dependency probes. One unhealthy or slow
// dependency never blocks reporting on the others.
type HealthChecker struct {
	Timeout time.Duration
	probes  map[string]Probe
}

func NewHealthChecker(timeout time.Duration) *HealthChecker {
	return &HealthChecker{
		Timeout: timeout,
		probes:  make(map[string]Probe),
	}
}

func (h *HealthChecker) Register(name string, p Probe) {
	h.probes[name] = p
}

// Names returns the registered probe names in sorted order.
func (h *HealthChecker) Names() []string {
	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckAll runs every probe concurrently, each under its own timeout, and
// returns per-dependency results. A nil value means healthy.
func (h *HealthChecker) CheckAll(ctx context.Context) map[string]error {
	results := make(map[string]error, len(h.probes))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, probe := range h.probes {
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()
			err := h.check(ctx, probe)
			mu.Lock()
			results[name] = err
			mu.Unlock()
		}(name, probe)
	}
	wg.Wait()
	return results
}

// CheckOne runs a single named probe. The boolean reports whether the name
// is registered.
func (h *HealthChecker) CheckOne(ctx context.Context, name string) (error, bool) {
	probe, ok := h.probes[name]
	if !ok {
		return nil, false
	}
	return h.check(ctx, probe), true
}

func (h *HealthChecker) check(ctx context.Context, probe Probe) error {
	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()
	return probe(ctx)
}
