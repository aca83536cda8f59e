// Package billing defines subscription plans and the quotas they impose on
// the monitoring engine.
package billing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Unlimited marks a quota with no upper bound.
const Unlimited = -1

// Plan names
const (
	PlanFree     = "free"
	PlanPro      = "pro"
	PlanBusiness = "business"
	planCustom   = "custom"
)

// ErrUnknownPlan is returned when a plan name cannot be parsed.
var ErrUnknownPlan = errors.New("unknown plan")

// Quota holds the limits of a plan.
type Quota struct {
	MaxMonitors    int `json:"max_monitors"`
	MinIntervalS   int `json:"min_interval_s"`
	MaxStatusPages int `json:"max_status_pages"`
}

// Plan is a named quota.
type Plan struct {
	Name  string `json:"name"`
	Quota Quota  `json:"quota"`
}

// AllowsMonitors reports whether a workspace holding count monitors may add one more.
func (p Plan) AllowsMonitors(count int64) bool {
	return p.Quota.MaxMonitors == Unlimited || count < int64(p.Quota.MaxMonitors)
}

// AllowsStatusPages reports whether a workspace holding count status pages may add one more.
func (p Plan) AllowsStatusPages(count int64) bool {
	return p.Quota.MaxStatusPages == Unlimited || count < int64(p.Quota.MaxStatusPages)
}

// AllowsInterval reports whether intervalS satisfies the plan minimum.
func (p Plan) AllowsInterval(intervalS int) bool {
	return intervalS >= p.Quota.MinIntervalS
}

var (
	Free = Plan{Name: PlanFree, Quota: Quota{MaxMonitors: 5, MinIntervalS: 300, MaxStatusPages: 1}}
	Pro  = Plan{Name: PlanPro, Quota: Quota{MaxMonitors: 50, MinIntervalS: 60, MaxStatusPages: 10}}

	Business = Plan{Name: PlanBusiness, Quota: Quota{MaxMonitors: Unlimited, MinIntervalS: 30, MaxStatusPages: Unlimited}}
)

// Plans lists the built-in plans.
var Plans = []Plan{Free, Pro, Business}

// ParsePlan resolves free, pro, business, or custom:N where N is the
// monitor limit of an enterprise contract.
func ParsePlan(name string) (Plan, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case PlanFree:
		return Free, nil
	case PlanPro:
		return Pro, nil
	case PlanBusiness:
		return Business, nil
	}

	if rest, ok := strings.CutPrefix(name, planCustom+":"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, name)
		}
		return Plan{
			Name:  name,
			Quota: Quota{MaxMonitors: n, MinIntervalS: Business.Quota.MinIntervalS, MaxStatusPages: Unlimited},
		}, nil
	}

	return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, name)
}

// Gate holds the active plan. It is safe for concurrent use.
type Gate struct {
	mu   sync.RWMutex
	plan Plan
}

// NewGate returns a gate initialised with plan.
func NewGate(plan Plan) *Gate {
	return &Gate{plan: plan}
}

// Current returns the active plan.
func (g *Gate) Current() Plan {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.plan
}

// Set replaces the active plan. Existing monitors are not affected.
func (g *Gate) Set(plan Plan) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.plan = plan
}
