package tracking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/catintel/catintel/internal/salesrank"
)

type memRepo struct {
	mu           sync.Mutex
	products     map[string]Product
	observations []salesrank.Observation
	estimates    []StoredEstimate
	latestCalls  int
}

func newMemRepo() *memRepo {
	return &memRepo{products: make(map[string]Product)}
}

func (m *memRepo) RecordSnapshots(_ context.Context, snaps []Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, snap := range snaps {
		m.record(snap)
	}
	return nil
}

func (m *memRepo) record(snap Snapshot) {
	p, ok := m.products[snap.ASIN]
	if !ok {
		p = Product{ASIN: snap.ASIN, FirstTracked: snap.ObservedAt}
	}
	if snap.Title != "" {
		p.Title = snap.Title
	}
	if snap.Brand != "" {
		p.Brand = snap.Brand
	}
	if snap.Category != "" {
		p.Category = snap.Category
	}
	if snap.Price != nil && !snap.ObservedAt.Before(p.LastTracked) {
		p.CurrentPrice = snap.Price
	}
	if snap.ObservedAt.Before(p.FirstTracked) {
		p.FirstTracked = snap.ObservedAt
	}
	if snap.ObservedAt.After(p.LastTracked) {
		p.LastTracked = snap.ObservedAt
	}
	m.products[snap.ASIN] = p
	m.observations = append(m.observations, snap.Observation)
}

func (m *memRepo) GetProduct(_ context.Context, asin string) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[asin]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (m *memRepo) ListASINs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.products))
	for asin := range m.products {
		out = append(out, asin)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memRepo) LatestRanked(_ context.Context, asins []string) ([]salesrank.Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latestCalls++
	wanted := make(map[string]bool, len(asins))
	for _, a := range asins {
		wanted[a] = true
	}
	var selected []salesrank.Observation
	for _, obs := range m.observations {
		if len(wanted) == 0 || wanted[obs.ASIN] {
			selected = append(selected, obs)
		}
	}
	latest := salesrank.Latest(selected)
	out := make([]salesrank.Observation, 0, len(latest))
	for _, obs := range latest {
		out = append(out, obs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ASIN < out[j].ASIN })
	return out, nil
}

func (m *memRepo) ReviewHistory(_ context.Context, asin string, since time.Time) ([]salesrank.ReviewPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []salesrank.ReviewPoint
	for _, obs := range m.observations {
		if obs.ASIN == asin && !obs.ObservedAt.Before(since) {
			out = append(out, salesrank.ReviewPoint{ReviewCount: obs.ReviewCount, ObservedAt: obs.ObservedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObservedAt.Before(out[j].ObservedAt) })
	return out, nil
}

func (m *memRepo) SaveEstimate(_ context.Context, est StoredEstimate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.estimates = append(m.estimates, est)
	return nil
}

func (m *memRepo) LatestEstimate(_ context.Context, asin string) (StoredEstimate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.estimates) - 1; i >= 0; i-- {
		if m.estimates[i].ASIN == asin {
			return m.estimates[i], nil
		}
	}
	return StoredEstimate{}, ErrNotFound
}
