package deeplink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/deeplink/pkg/urltemplate"
)

// fakeRouter plays the host router: it holds the current URL, answers
// navigations, and publishes new parameters when a navigation is applied.
type fakeRouter struct {
	mu      sync.Mutex
	url     string
	tmpl    urltemplate.Template
	calls   []string
	applied []string
	block   bool
	gates   []chan error
	reject  error

	path  *Params
	query *Params

	started chan string
}

func newFakeRouter(t *testing.T, url, pattern string) *fakeRouter {
	t.Helper()
	r := &fakeRouter{
		url:     url,
		started: make(chan string, 16),
	}
	if pattern != "" {
		r.tmpl = urltemplate.MustParse(pattern)
	}
	split := urltemplate.SplitURL(url)
	pathParams := map[string]string{}
	if r.tmpl != nil {
		p, err := urltemplate.ExtractParams(split.Path, r.tmpl)
		if err != nil {
			t.Fatalf("url %q does not match %q: %v", url, pattern, err)
		}
		pathParams = p
	}
	r.path = NewParams(pathParams)
	r.query = NewParams(split.Query.Map())
	return r
}

func (r *fakeRouter) host(route string) Host {
	return Host{
		Route:       route,
		PathParams:  r.path,
		QueryParams: r.query,
		Navigator:   r,
		Location:    r,
	}
}

func (r *fakeRouter) URL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.url
}

func (r *fakeRouter) Template() (urltemplate.Template, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tmpl, r.tmpl != nil
}

func (r *fakeRouter) Navigate(ctx context.Context, url string) error {
	r.mu.Lock()
	r.calls = append(r.calls, url)
	var gate chan error
	if r.block {
		gate = make(chan error, 1)
		r.gates = append(r.gates, gate)
	}
	reject := r.reject
	r.mu.Unlock()

	r.started <- url

	if gate != nil {
		select {
		case err := <-gate:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if reject != nil {
		return reject
	}
	r.apply(url)
	return nil
}

// apply shows url and publishes its parameters, as a router does after a
// successful navigation.
func (r *fakeRouter) apply(url string) {
	r.mu.Lock()
	r.url = url
	r.applied = append(r.applied, url)
	tmpl := r.tmpl
	r.mu.Unlock()

	split := urltemplate.SplitURL(url)
	if tmpl != nil {
		if p, err := urltemplate.ExtractParams(split.Path, tmpl); err == nil {
			r.path.Publish(p)
		}
	}
	r.query.Publish(split.Query.Map())
}

// release lets the i-th blocked navigation finish.
func (r *fakeRouter) release(t *testing.T, i int) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if i >= len(r.gates) {
		t.Fatalf("no blocked navigation #%d", i)
	}
	r.gates[i] <- nil
}

func (r *fakeRouter) navigations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *fakeRouter) appliedURLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.applied...)
}

func (r *fakeRouter) waitStarted(t *testing.T) string {
	t.Helper()
	select {
	case url := <-r.started:
		return url
	case <-time.After(2 * time.Second):
		t.Fatal("navigation did not start")
		return ""
	}
}

func (r *fakeRouter) expectNoNavigation(t *testing.T) {
	t.Helper()
	select {
	case url := <-r.started:
		t.Fatalf("unexpected navigation to %q", url)
	case <-time.After(50 * time.Millisecond):
	}
}

// waitIdle waits until no navigation for name is pending.
func waitIdle(t *testing.T, s *Sync, name string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Pending(name) {
		if time.Now().After(deadline) {
			t.Fatalf("navigation for %q still pending", name)
		}
		time.Sleep(time.Millisecond)
	}
}

// countingField counts inflow assignments.
type countingField struct {
	inner   *Value[string]
	mu      sync.Mutex
	assigns int
}

func newCountingField() *countingField {
	return &countingField{inner: NewEmpty[string]()}
}

func (f *countingField) Value() any { return f.inner.Value() }

func (f *countingField) Set(v string) { f.inner.Set(v) }

func (f *countingField) OnChange(fn func(any)) func() { return f.inner.OnChange(fn) }

func (f *countingField) Assign(v any) error {
	f.mu.Lock()
	f.assigns++
	f.mu.Unlock()
	return f.inner.Assign(v)
}

func (f *countingField) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assigns
}

// inflowOnly is a field with no change notification.
type inflowOnly struct {
	v any
}

func (f *inflowOnly) Value() any { return f.v }

func (f *inflowOnly) Assign(v any) error {
	f.v = v
	return nil
}
