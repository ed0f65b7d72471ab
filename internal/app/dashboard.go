package app

import (
	"time"

	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/workflow"
)

// DashboardSnapshot is the read-only metrics view served to the dashboard
// endpoint. It is computed from a consistent point-in-time view of the
// registry, admission set and branch queues.
type DashboardSnapshot struct {
	ActiveWorkers DashboardWorkers `json:"active_workers"`
	QueueDepth    DashboardQueues  `json:"queue_depth"`
	JobLatency    DashboardLatency `json:"job_latency"`
	ActiveUsers   DashboardUsers   `json:"active_users"`
	SystemHealth  DashboardHealth  `json:"system_health"`
}

// DashboardWorkers reports running job counts.
type DashboardWorkers struct {
	Global   int            `json:"global"`
	ByTenant map[string]int `json:"by_tenant"`
	Max      int            `json:"max"`
}

// DashboardQueues reports pending queue depths.
type DashboardQueues struct {
	Total    int                       `json:"total"`
	ByTenant map[string]int            `json:"by_tenant"`
	ByBranch map[string]map[string]int `json:"by_branch"` // branch -> tenant -> depth
}

// DashboardLatency reports the sliding-window completion latency.
type DashboardLatency struct {
	AverageSeconds float64 `json:"average_seconds"`
	AverageMinutes float64 `json:"average_minutes"`
}

// DashboardUsers reports the admission set.
type DashboardUsers struct {
	Count int `json:"count"`
	Max   int `json:"max"`
}

// DashboardHealth reports the structural self-test.
type DashboardHealth struct {
	Status      string `json:"status"`
	RunningJobs int    `json:"running_jobs"`
	QueueDepth  int    `json:"queue_depth"`
}

// Dashboard builds the metrics snapshot.
func (e *Engine) Dashboard() *DashboardSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	byTenantRunning := make(map[string]int)
	running := 0
	for ref := range e.running {
		if j := e.registry.Job(ref); j != nil && j.Status == workflow.StatusRunning {
			byTenantRunning[j.TenantID]++
			running++
		}
	}

	byTenantDepth := make(map[string]int)
	byBranch := make(map[string]map[string]int)
	for key, depth := range e.queues.Depths() {
		byTenantDepth[key.TenantID] += depth
		if byBranch[key.Branch] == nil {
			byBranch[key.Branch] = make(map[string]int)
		}
		byBranch[key.Branch][key.TenantID] = depth
	}

	now := time.Now().UTC()
	avgSec := e.latency.AverageSeconds(now)

	health := "healthy"
	if len(e.poisoned) > 0 || !e.verifyInvariants() {
		health = "unhealthy"
	}

	return &DashboardSnapshot{
		ActiveWorkers: DashboardWorkers{
			Global:   running,
			ByTenant: byTenantRunning,
			Max:      e.cfg.MaxWorkers,
		},
		QueueDepth: DashboardQueues{
			Total:    e.queues.TotalDepth(),
			ByTenant: byTenantDepth,
			ByBranch: byBranch,
		},
		JobLatency: DashboardLatency{
			AverageSeconds: avgSec,
			AverageMinutes: avgSec / 60.0,
		},
		ActiveUsers: DashboardUsers{
			Count: e.admission.Count(),
			Max:   e.admission.Max(),
		},
		SystemHealth: DashboardHealth{
			Status:      health,
			RunningJobs: running,
			QueueDepth:  e.queues.TotalDepth(),
		},
	}
}
