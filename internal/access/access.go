// Package access provides the capability oracle the engine consults before
// executing privileged operations. Roles are looked up dynamically rather
// than baked into account types, so deployments can back the oracle with
// whatever directory they already run.
package access

import "sync"

// Capability names a privileged role.
type Capability string

const (
	// Moderator may flag/unflag and deactivate/reactivate answers and
	// questions. Content-safety actions only; no economic parameters.
	Moderator Capability = "moderator"

	// Admin may tune fees, stakes, limits, the treasury account, and the
	// global paused state.
	Admin Capability = "admin"
)

// Oracle answers capability checks. Every privileged entry point consults
// the oracle before any other validation.
type Oracle interface {
	HasCapability(account string, cap Capability) bool
}

// StaticOracle is an in-memory Oracle with explicit grants.
type StaticOracle struct {
	mu     sync.RWMutex
	grants map[string]map[Capability]bool
}

// NewStaticOracle creates an oracle with no grants.
func NewStaticOracle() *StaticOracle {
	return &StaticOracle{grants: make(map[string]map[Capability]bool)}
}

// Grant gives an account a capability.
func (o *StaticOracle) Grant(account string, cap Capability) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.grants[account] == nil {
		o.grants[account] = make(map[Capability]bool)
	}
	o.grants[account][cap] = true
}

// Revoke removes a capability from an account.
func (o *StaticOracle) Revoke(account string, cap Capability) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.grants[account], cap)
}

// HasCapability implements Oracle.
func (o *StaticOracle) HasCapability(account string, cap Capability) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.grants[account][cap]
}
