package app

import (
	"time"

	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/metrics"
)

// Admission tracks the set of active tenants and enforces the global
// MAX_ACTIVE_USERS cap.
//
// Admission is evaluated at workflow submission time: a submission by an
// already-admitted tenant always succeeds and does not reserve additional
// slots; a submission by a new tenant when the set is full is rejected with
// a user-visible error rather than queued indefinitely.
type Admission struct {
	max    int
	active map[string]time.Time // tenant id -> admitted at
}

// NewAdmission creates an admission controller with the given cap.
func NewAdmission(maxActiveUsers int) *Admission {
	return &Admission{
		max:    maxActiveUsers,
		active: make(map[string]time.Time),
	}
}

// TryAdmit admits the tenant if it already holds a slot or the set has
// room. Returns false when the cap is reached.
func (a *Admission) TryAdmit(tenantID string) bool {
	if _, ok := a.active[tenantID]; ok {
		return true
	}
	if len(a.active) >= a.max {
		return false
	}
	a.active[tenantID] = time.Now().UTC()
	metrics.ActiveTenants.Set(float64(len(a.active)))
	return true
}

// Release removes the tenant from the active set. Called when the tenant
// has no pending or running jobs left.
func (a *Admission) Release(tenantID string) {
	if _, ok := a.active[tenantID]; !ok {
		return
	}
	delete(a.active, tenantID)
	metrics.ActiveTenants.Set(float64(len(a.active)))
}

// IsActive reports whether the tenant currently holds a slot.
func (a *Admission) IsActive(tenantID string) bool {
	_, ok := a.active[tenantID]
	return ok
}

// Count returns the number of active tenants.
func (a *Admission) Count() int {
	return len(a.active)
}

// Max returns the admission cap.
func (a *Admission) Max() int {
	return a.max
}
