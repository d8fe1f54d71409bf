package exporter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MatteoMori/vaultmonitor/pkg/expiration"
	"github.com/MatteoMori/vaultmonitor/pkg/monitor"
	"github.com/MatteoMori/vaultmonitor/pkg/shared"
)

type fakeMonitor struct {
	mu      sync.Mutex
	path    string
	err     error
	updates int
	onCall  func()
}

var _ monitor.Monitor = (*fakeMonitor)(nil)

func (m *fakeMonitor) Kind() monitor.Kind            { return monitor.KindSecret }
func (m *fakeMonitor) MountPoint() string            { return "secret" }
func (m *fakeMonitor) MonitoredPath() string         { return m.path }
func (m *fakeMonitor) Service() string               { return "billing" }
func (m *fakeMonitor) Labels() map[string]string     { return nil }
func (m *fakeMonitor) FieldNames() shared.FieldNames { return shared.FieldNames{} }

func (m *fakeMonitor) FetchExpiration(context.Context) (expiration.Record, error) {
	return expiration.Record{}, m.err
}

func (m *fakeMonitor) Update(context.Context) error {
	m.mu.Lock()
	m.updates++
	m.mu.Unlock()

	if m.onCall != nil {
		m.onCall()
	}
	return m.err
}

func (m *fakeMonitor) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

func TestPoller_Sweep(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	first := &fakeMonitor{path: "a"}
	failing := &fakeMonitor{path: "b", err: boom}
	last := &fakeMonitor{path: "c"}

	p := &Poller{Monitors: []monitor.Monitor{first, failing, last}}
	if err := p.Sweep(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}

	if got, want := first.count(), 1; got != want {
		t.Errorf("expected %d updates of the first monitor, got %d", want, got)
	}
	if got, want := failing.count(), 1; got != want {
		t.Errorf("expected %d updates of the failing monitor, got %d", want, got)
	}
	// The rest of the sweep is aborted.
	if got, want := last.count(), 0; got != want {
		t.Errorf("expected %d updates of the last monitor, got %d", want, got)
	}
}

func TestPoller_RunUntilCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := &fakeMonitor{path: "a"}
	m.onCall = func() {
		if m.count() >= 3 {
			cancel()
		}
	}

	var mu sync.Mutex
	var observed []error
	p := &Poller{
		Monitors: []monitor.Monitor{m},
		Interval: 10 * time.Millisecond,
		Observe: func(_ time.Duration, err error) {
			mu.Lock()
			defer mu.Unlock()
			observed = append(observed, err)
		},
	}

	if err := p.Run(ctx); err != nil {
		t.Fatal(err)
	}

	if got, want := m.count(), 3; got != want {
		t.Errorf("expected %d sweeps, got %d", want, got)
	}
	mu.Lock()
	defer mu.Unlock()
	for _, err := range observed {
		if err != nil {
			t.Errorf("unexpected observed error %v", err)
		}
	}
}

func TestPoller_RunStopsOnError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	m := &fakeMonitor{path: "a", err: boom}

	var observed error
	p := &Poller{
		Monitors: []monitor.Monitor{m},
		Interval: time.Hour,
		Observe: func(_ time.Duration, err error) {
			observed = err
		},
	}

	done := make(chan error, 1)
	go func() {
		done <- p.Run(context.Background())
	}()

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Errorf("expected %v, got %v", boom, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop after a failing sweep")
	}

	if !errors.Is(observed, boom) {
		t.Errorf("expected the failing sweep to be observed, got %v", observed)
	}
	if got, want := m.count(), 1; got != want {
		t.Errorf("expected %d sweeps, got %d", want, got)
	}
}
