package collector_test

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/sampler"
)

// fakeHost scripts every sampler port. A counter yields its sequence in
// order and then keeps returning the last value.
type fakeHost struct {
	mu        sync.Mutex
	values    map[sampler.Counter][]float64
	reads     map[sampler.Counter]int
	failing   map[sampler.Counter]bool
	instances map[string][]string
	volumes   []sampler.Volume
	statuses  map[string]sampler.ServiceStatus
	ports     map[int]bool
	http      []httpStep
	httpCalls int
}

type httpStep struct {
	result sampler.HTTPResult
	err    error
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		values:    make(map[sampler.Counter][]float64),
		reads:     make(map[sampler.Counter]int),
		failing:   make(map[sampler.Counter]bool),
		instances: make(map[string][]string),
		statuses:  make(map[string]sampler.ServiceStatus),
		ports:     make(map[int]bool),
	}
}

// rate scripts a rate counter: the warm-up read returns 0, the timed read v.
func (f *fakeHost) rate(c sampler.Counter, values ...float64) {
	seq := make([]float64, 0, len(values)*2)
	for _, v := range values {
		seq = append(seq, 0, v)
	}
	f.values[c] = seq
}

func (f *fakeHost) set(c sampler.Counter, v float64) {
	f.values[c] = []float64{v}
}

func (f *fakeHost) Read(_ context.Context, c sampler.Counter) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing[c] {
		return 0, errors.New().WithData(sampler.ErrSampleUnavailable, c.String())
	}

	seq, ok := f.values[c]
	if !ok || len(seq) == 0 {
		return 0, errors.New().WithData(sampler.ErrUnknownCounter, c.String())
	}

	i := f.reads[c]
	f.reads[c]++
	if i >= len(seq) {
		i = len(seq) - 1
	}

	return seq[i], nil
}

func (f *fakeHost) Instances(_ context.Context, category string) ([]string, error) {
	names, ok := f.instances[category]
	if !ok {
		return nil, errors.New().WithData(sampler.ErrUnknownCategory, category)
	}

	return names, nil
}

func (f *fakeHost) Volumes(context.Context) ([]sampler.Volume, error) {
	return f.volumes, nil
}

func (f *fakeHost) Status(_ context.Context, name string) (sampler.ServiceStatus, error) {
	status, ok := f.statuses[name]
	if !ok {
		return sampler.StatusStopped, errors.New().WithData(sampler.ErrSampleUnavailable, name)
	}

	return status, nil
}

func (f *fakeHost) ProbeTCP(_ context.Context, _ string, port int, _ time.Duration) bool {
	return f.ports[port]
}

func (f *fakeHost) ProbeHTTP(context.Context, string, time.Duration) (sampler.HTTPResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.http) == 0 {
		return sampler.HTTPResult{}, errors.New().New(sampler.ErrProbeFailed)
	}

	i := f.httpCalls
	f.httpCalls++
	if i >= len(f.http) {
		i = len(f.http) - 1
	}

	return f.http[i].result, f.http[i].err
}

func noWait(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func rates(r sampler.Reader) *sampler.RateSampler {
	return sampler.NewRateSampler(r, 0).WithWait(noWait)
}
