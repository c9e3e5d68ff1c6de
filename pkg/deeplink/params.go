package deeplink

import (
	"maps"
	"sync"
)

// Params is an in-memory ParamSource. Hosts publish a snapshot whenever
// the URL changes; subscribers are only called when the snapshot differs
// from the previous one.
type Params struct {
	mu      sync.Mutex
	current map[string]string
	subs    map[int]func(map[string]string)
	nextID  int
}

// NewParams creates a source holding initial.
func NewParams(initial map[string]string) *Params {
	return &Params{
		current: maps.Clone(initial),
		subs:    make(map[int]func(map[string]string)),
	}
}

// Snapshot implements ParamSource.
func (p *Params) Snapshot() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneParams(p.current)
}

// Subscribe implements ParamSource.
func (p *Params) Subscribe(fn func(map[string]string)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.subs[id] = fn

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Publish replaces the snapshot and notifies subscribers in subscription
// order. It reports whether the snapshot changed.
func (p *Params) Publish(params map[string]string) bool {
	p.mu.Lock()
	if maps.Equal(p.current, params) {
		p.mu.Unlock()
		return false
	}
	p.current = cloneParams(params)

	subs := make([]func(map[string]string), 0, len(p.subs))
	for id := 0; id < p.nextID; id++ {
		if fn, ok := p.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(cloneParams(params))
	}
	return true
}

// Subscribers returns the number of active subscriptions.
func (p *Params) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

func cloneParams(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
