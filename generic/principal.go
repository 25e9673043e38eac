package generic

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// PRINCIPAL - who is calling, resolved once at the API boundary
// =============================================================================

// Capability is one role a principal holds. A principal may hold several.
type Capability string

const (
	CapAdmin      Capability = "admin"
	CapController Capability = "controller"
	CapTeacher    Capability = "teacher"
	CapRegistrar  Capability = "registrar"
)

// CapabilitySet is an immutable set of capabilities.
type CapabilitySet map[Capability]struct{}

// ParseCapabilities parses a comma separated list, e.g. "admin,registrar".
func ParseCapabilities(s string) (CapabilitySet, error) {
	set := CapabilitySet{}
	for _, raw := range strings.Split(s, ",") {
		token := Capability(strings.ToLower(strings.TrimSpace(raw)))
		if token == "" {
			continue
		}
		switch token {
		case CapAdmin, CapController, CapTeacher, CapRegistrar:
			set[token] = struct{}{}
		default:
			return nil, fmt.Errorf("unknown capability %q", raw)
		}
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("no capability given")
	}
	return set, nil
}

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

func (s CapabilitySet) String() string {
	names := make([]string, 0, len(s))
	for c := range s {
		names = append(names, string(c))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// Principal is the authenticated caller. Authentication itself happens
// upstream; the API only trusts the gateway headers it was given.
type Principal struct {
	ID           string
	Tenant       TenantID
	Capabilities CapabilitySet
}

// CanViewSalary: staff roles see every teacher of their tenant,
// a teacher only sees their own figures.
func (p Principal) CanViewSalary(teacher TeacherID) bool {
	if p.Capabilities.Has(CapAdmin) || p.Capabilities.Has(CapController) || p.Capabilities.Has(CapRegistrar) {
		return true
	}
	return p.Capabilities.Has(CapTeacher) && TeacherID(p.ID) == teacher
}

func (p Principal) CanRunBatch() bool {
	return p.Capabilities.Has(CapAdmin) || p.Capabilities.Has(CapController)
}

func (p Principal) CanManageWaivers() bool { return p.Capabilities.Has(CapAdmin) }
func (p Principal) CanManageConfig() bool  { return p.Capabilities.Has(CapAdmin) }
func (p Principal) CanClearCache() bool    { return p.Capabilities.Has(CapAdmin) }

func (p Principal) CanRecordBonuses() bool {
	return p.Capabilities.Has(CapAdmin) || p.Capabilities.Has(CapController)
}

func (p Principal) CanRecordPayments() bool {
	return p.Capabilities.Has(CapAdmin) || p.Capabilities.Has(CapRegistrar)
}

// =============================================================================
// TENANT SCOPE - optional tenant at the boundary
// =============================================================================

// TenantScope is a tenant that may be absent. Legacy callers send no
// tenant; the boundary resolves them to the configured default so the
// engine never sees an empty tenant.
type TenantScope struct {
	id  TenantID
	set bool
}

func SomeTenant(id TenantID) TenantScope { return TenantScope{id: id, set: true} }
func NoTenant() TenantScope              { return TenantScope{} }

// TenantScopeFrom treats blank input as "no tenant".
func TenantScopeFrom(s string) TenantScope {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoTenant()
	}
	return SomeTenant(TenantID(s))
}

// Get returns the tenant and whether one was given.
func (s TenantScope) Get() (TenantID, bool) { return s.id, s.set }

// Resolve returns the tenant, or fallback when none was given.
func (s TenantScope) Resolve(fallback TenantID) TenantID {
	if s.set {
		return s.id
	}
	return fallback
}
