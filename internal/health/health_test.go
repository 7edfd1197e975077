package health

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/infra/storage/memory"
)

// =============================================================================
// Helpers
// =============================================================================

func newMonitor(store *memory.Store, deps []Dependency) *Monitor {
	return NewMonitor(
		memory.NewErrorRepo(store),
		memory.NewContentRepo(store),
		memory.NewRunRepo(store),
		deps,
	)
}

func addUnresolved(t *testing.T, store *memory.Store, escalated bool) {
	t.Helper()
	repo := memory.NewErrorRepo(store)
	rec := &domain.ErrorRecord{
		ID:        uuid.New().String(),
		Component: domain.ComponentPublisher,
		Kind:      domain.ErrAPIError,
		Message:   "boom",
	}
	if err := repo.Add(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if escalated {
		if err := repo.MarkEscalated(context.Background(), rec.ID); err != nil {
			t.Fatal(err)
		}
	}
}

type stubPinger struct {
	err error
}

func (p *stubPinger) Health(ctx context.Context) error { return p.err }

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_Healthy(t *testing.T) {
	monitor := newMonitor(memory.NewStore(), nil)

	report := monitor.Check(context.Background())

	if report.SystemStatus != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.SystemStatus)
	}
}

func TestMonitor_UnresolvedErrorDegrades(t *testing.T) {
	store := memory.NewStore()
	addUnresolved(t, store, false)
	monitor := newMonitor(store, nil)

	report := monitor.Check(context.Background())

	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
	if report.Errors.Unresolved != 1 {
		t.Errorf("unresolved = %d, want 1", report.Errors.Unresolved)
	}
}

func TestMonitor_EscalationIsCritical(t *testing.T) {
	store := memory.NewStore()
	addUnresolved(t, store, true)
	monitor := newMonitor(store, nil)

	report := monitor.Check(context.Background())

	if report.SystemStatus != StatusCritical {
		t.Errorf("expected critical, got %s", report.SystemStatus)
	}
	if report.Errors.Escalated != 1 {
		t.Errorf("escalated = %d, want 1", report.Errors.Escalated)
	}
}

func TestMonitor_OptionalDependencyLossDegrades(t *testing.T) {
	monitor := newMonitor(memory.NewStore(), []Dependency{
		{Name: "redis", Pinger: &stubPinger{err: errors.New("connection refused")}, Optional: true},
	})

	report := monitor.Check(context.Background())

	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
}

func TestMonitor_RequiredDependencyLossIsCritical(t *testing.T) {
	monitor := newMonitor(memory.NewStore(), []Dependency{
		{Name: "postgres", Pinger: &stubPinger{err: errors.New("connection refused")}},
	})

	report := monitor.Check(context.Background())

	if report.SystemStatus != StatusCritical {
		t.Errorf("expected critical, got %s", report.SystemStatus)
	}
}

func TestMonitor_CachesReports(t *testing.T) {
	store := memory.NewStore()
	monitor := newMonitor(store, nil)

	first := monitor.Check(context.Background())
	addUnresolved(t, store, false)
	second := monitor.Check(context.Background())

	// Within the cache window the stale report is served as-is.
	if second != first {
		t.Error("expected the cached report within the check window")
	}
}
