// Package health provides pipeline health monitoring and status reporting.
package health

// SystemStatus represents the overall health state of the pipeline or one of
// its areas.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ErrorHealth summarizes the error ledger.
type ErrorHealth struct {
	Status     SystemStatus `json:"status"`
	Unresolved int          `json:"unresolved"`
	Escalated  int          `json:"escalated"`
}

// ContentHealth summarizes the editorial queue.
type ContentHealth struct {
	Status        SystemStatus `json:"status"`
	DraftsWaiting int          `json:"drafts_waiting"`
	ApprovedQueue int          `json:"approved_queue"`
}

// RunHealth summarizes recent stage runs.
type RunHealth struct {
	Status      SystemStatus `json:"status"`
	RecentRuns  int          `json:"recent_runs"`
	RecentFails int          `json:"recent_fails"`
}

// DependencyHealth reports reachability of one external dependency.
type DependencyHealth struct {
	Name   string       `json:"name"`
	Status SystemStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// Report contains the full pipeline health report.
type Report struct {
	SystemStatus SystemStatus       `json:"system_status"`
	Errors       ErrorHealth        `json:"errors"`
	Content      ContentHealth      `json:"content"`
	Runs         RunHealth          `json:"runs"`
	Dependencies []DependencyHealth `json:"dependencies,omitempty"`
}

// worst returns the more severe of two statuses.
func worst(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
