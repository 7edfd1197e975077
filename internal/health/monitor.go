package health

import (
	"context"
	"sync"
	"time"

	"github.com/apppro/content-pipeline/internal/core/domain"
	"github.com/apppro/content-pipeline/internal/infra/storage"
)

// recentRunWindow is how many runs back the failure-rate check looks.
const recentRunWindow = 10

// Pinger checks reachability of one external dependency.
type Pinger interface {
	Health(ctx context.Context) error
}

// Dependency pairs a pinger with its report name. Optional marks
// dependencies whose loss only degrades the system (the seen-URL cache).
type Dependency struct {
	Name     string
	Pinger   Pinger
	Optional bool
}

// Monitor aggregates health status from the pipeline's stores.
type Monitor struct {
	errors     storage.ErrorRepository
	content    storage.ContentRepository
	runs       storage.RunRepository
	deps       []Dependency
	lastCheck  time.Time
	lastReport *Report
	mu         sync.Mutex
}

// NewMonitor creates a health monitor over the pipeline stores.
func NewMonitor(
	errors storage.ErrorRepository,
	content storage.ContentRepository,
	runs storage.RunRepository,
	deps []Dependency,
) *Monitor {
	return &Monitor{
		errors:  errors,
		content: content,
		runs:    runs,
		deps:    deps,
	}
}

// Check performs a health check across all areas. Results are cached for a
// few seconds so probes cannot hammer the stores.
func (m *Monitor) Check(ctx context.Context) *Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < 10*time.Second && m.lastReport != nil {
		return m.lastReport
	}

	report := &Report{SystemStatus: StatusHealthy}
	report.Errors = m.checkErrors(ctx)
	report.Content = m.checkContent(ctx)
	report.Runs = m.checkRuns(ctx)
	report.Dependencies = m.checkDeps(ctx)

	report.SystemStatus = worst(report.SystemStatus, report.Errors.Status)
	report.SystemStatus = worst(report.SystemStatus, report.Content.Status)
	report.SystemStatus = worst(report.SystemStatus, report.Runs.Status)
	for _, dep := range report.Dependencies {
		report.SystemStatus = worst(report.SystemStatus, dep.Status)
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

func (m *Monitor) checkErrors(ctx context.Context) ErrorHealth {
	h := ErrorHealth{Status: StatusHealthy}
	unresolved, escalated, err := m.errors.CountUnresolved(ctx)
	if err != nil {
		h.Status = StatusDegraded
		return h
	}
	h.Unresolved = unresolved
	h.Escalated = escalated

	// Escalated errors are waiting on a human; that is already degraded.
	if escalated > 0 || unresolved > 25 {
		h.Status = StatusCritical
	} else if unresolved > 0 {
		h.Status = StatusDegraded
	}
	return h
}

func (m *Monitor) checkContent(ctx context.Context) ContentHealth {
	h := ContentHealth{Status: StatusHealthy}
	drafts, err := m.content.CountByStatus(ctx, domain.ContentDraft)
	if err != nil {
		h.Status = StatusDegraded
		return h
	}
	approved, err := m.content.CountByStatus(ctx, domain.ContentApproved)
	if err != nil {
		h.Status = StatusDegraded
		return h
	}
	h.DraftsWaiting = drafts
	h.ApprovedQueue = approved

	// A growing review backlog means drafts are produced faster than
	// reviewed; surface it before the queue becomes stale.
	if drafts > 20 || approved > 10 {
		h.Status = StatusDegraded
	}
	return h
}

func (m *Monitor) checkRuns(ctx context.Context) RunHealth {
	h := RunHealth{Status: StatusHealthy}
	recent, err := m.runs.ListRecent(ctx, recentRunWindow)
	if err != nil {
		h.Status = StatusDegraded
		return h
	}
	h.RecentRuns = len(recent)
	for _, run := range recent {
		if run.Status == domain.RunFailed {
			h.RecentFails++
		}
	}
	if h.RecentFails > recentRunWindow/2 {
		h.Status = StatusCritical
	} else if h.RecentFails > 0 {
		h.Status = StatusDegraded
	}
	return h
}

func (m *Monitor) checkDeps(ctx context.Context) []DependencyHealth {
	var out []DependencyHealth
	for _, dep := range m.deps {
		d := DependencyHealth{Name: dep.Name, Status: StatusHealthy}
		if err := dep.Pinger.Health(ctx); err != nil {
			d.Error = err.Error()
			if dep.Optional {
				d.Status = StatusDegraded
			} else {
				d.Status = StatusCritical
			}
		}
		out = append(out, d)
	}
	return out
}
