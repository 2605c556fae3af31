// Package health reports readiness of the fixture server. A fixture has no
// upstreams to probe; readiness means the store loaded its seed data.
package health

import (
	"context"
	"time"

	"github.com/jwtpizza/api_fixture/pkg/fixture/store"
)

// Check captures a single readiness criterion.
type Check struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Report aggregates readiness checks.
type Report struct {
	Status    string    `json:"status"`
	CheckedAt time.Time `json:"checkedAt"`
	Checks    []Check   `json:"checks"`
}

// Reporter evaluates readiness of a fixture store.
type Reporter struct {
	store *store.Store
}

// NewReporter returns a reporter bound to the given store.
func NewReporter(st *store.Store) *Reporter {
	return &Reporter{store: st}
}

// Readiness inspects the store's seed data and returns an aggregated
// report. Status is "ready" when every check passes, "degraded" otherwise.
func (r *Reporter) Readiness(_ context.Context) Report {
	now := time.Now().UTC()

	if r == nil || r.store == nil {
		return Report{
			Status:    "degraded",
			CheckedAt: now,
			Checks: []Check{
				{Name: "store", Healthy: false, Detail: "fixture store not configured", CheckedAt: now},
			},
		}
	}

	stats := r.store.Stats()
	checks := []Check{
		seedCheck("seedUsers", stats.SeededUsers, now),
		seedCheck("menu", stats.MenuItems, now),
		seedCheck("franchises", stats.Franchises, now),
	}

	status := "ready"
	for _, c := range checks {
		if !c.Healthy {
			status = "degraded"
			break
		}
	}

	return Report{Status: status, CheckedAt: now, Checks: checks}
}

func seedCheck(name string, count int, now time.Time) Check {
	c := Check{Name: name, Healthy: count > 0, CheckedAt: now}
	if !c.Healthy {
		c.Detail = "no seed data loaded"
	}
	return c
}
