package workflow

import (
	"fmt"

	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/rbac"
)

// Transition is one directed edge of a machine.
type Transition struct {
	From string
	To   string
}

// Subject is the slice of an entity a guard may inspect.
type Subject struct {
	Remarks string
	HasData bool
}

// Rule gates one edge: which roles may take it, an optional guard over the
// subject, and whether taking it merges the draft into its canonical parent.
type Rule struct {
	Roles []rbac.Role
	Guard func(s Subject) error
	Merge bool
}

// Machine is a table-driven approval state machine for one entity kind.
// Absent edges are invalid; edges present but role-gated are forbidden.
type Machine struct {
	kind  string
	rules map[Transition]Rule
}

func NewMachine(kind string, rules map[Transition]Rule) *Machine {
	return &Machine{kind: kind, rules: rules}
}

func (m *Machine) Kind() string { return m.kind }

// Step validates the edge from->to for actor over s and returns its rule.
func (m *Machine) Step(from, to string, actor rbac.Role, s Subject) (Rule, error) {
	rule, ok := m.rules[Transition{From: from, To: to}]
	if !ok {
		return Rule{}, fmt.Errorf("%s %s to %s: %w", m.kind, from, to, ErrInvalidTransition)
	}
	if !roleAllowed(rule.Roles, actor) {
		return Rule{}, fmt.Errorf("%s %s to %s as %s: %w", m.kind, from, to, actor, ErrForbidden)
	}
	// A guard-blocked edge is not permitted for this subject, same as an
	// absent edge.
	if rule.Guard != nil {
		if err := rule.Guard(s); err != nil {
			return Rule{}, fmt.Errorf("%s %s to %s: %v: %w", m.kind, from, to, err, ErrInvalidTransition)
		}
	}
	return rule, nil
}

// Allows reports whether the edge exists, ignoring roles and guards.
func (m *Machine) Allows(from, to string) bool {
	_, ok := m.rules[Transition{From: from, To: to}]
	return ok
}

// Transitions returns every edge in the table.
func (m *Machine) Transitions() []Transition {
	out := make([]Transition, 0, len(m.rules))
	for t := range m.rules {
		out = append(out, t)
	}
	return out
}

func roleAllowed(roles []rbac.Role, actor rbac.Role) bool {
	for _, r := range roles {
		if r == actor {
			return true
		}
	}
	return false
}

// Site visit lifecycle. Approved, Cancelled and Outdated are terminal;
// Outdated is only ever assigned by the merge step, never by a caller.
const (
	VisitScheduled  = "Scheduled"
	VisitInProgress = "InProgress"
	VisitCompleted  = "Completed"
	VisitApproved   = "Approved"
	VisitCancelled  = "Cancelled"
	VisitOutdated   = "Outdated"
)

const (
	BOMDraft     = "draft"
	BOMSubmitted = "submitted"
	BOMApproved  = "approved"
	BOMRejected  = "rejected"
)

const (
	DocPending  = "Pending"
	DocApproved = "Approved"
	DocRejected = "Rejected"
	DocOutdated = "Outdated"
)

const (
	POIssued       = "issued"
	POAcknowledged = "acknowledged"
	POFulfilled    = "fulfilled"
	POCancelled    = "cancelled"
)

func completedNeedsContent(s Subject) error {
	if s.Remarks == "" && !s.HasData {
		return fmt.Errorf("completion needs remarks or captured data")
	}
	return nil
}

// SiteVisitMachine governs site-visit status changes. Approval merges the
// visit's captured data into the requirement and outdates its siblings.
var SiteVisitMachine = NewMachine("site visit", map[Transition]Rule{
	{VisitScheduled, VisitInProgress}: {Roles: []rbac.Role{rbac.RoleArchitect, rbac.RoleAdmin}},
	{VisitInProgress, VisitCompleted}: {Roles: []rbac.Role{rbac.RoleArchitect, rbac.RoleAdmin}, Guard: completedNeedsContent},
	{VisitCompleted, VisitApproved}:   {Roles: []rbac.Role{rbac.RoleAdmin}, Merge: true},
	{VisitScheduled, VisitCancelled}:  {Roles: []rbac.Role{rbac.RoleSales, rbac.RoleAdmin}},
	{VisitInProgress, VisitCancelled}: {Roles: []rbac.Role{rbac.RoleSales, rbac.RoleAdmin}},
	{VisitCompleted, VisitCancelled}:  {Roles: []rbac.Role{rbac.RoleAdmin}},
})

// BOMMachine governs bill-of-material reviews. A rejected BOM returns to
// draft for rework; an approved one can still be rejected before procurement
// acts on it.
var BOMMachine = NewMachine("bom", map[Transition]Rule{
	{BOMDraft, BOMSubmitted}:    {Roles: []rbac.Role{rbac.RoleProcurement, rbac.RoleAdmin}},
	{BOMSubmitted, BOMApproved}: {Roles: []rbac.Role{rbac.RoleAdmin}},
	{BOMSubmitted, BOMRejected}: {Roles: []rbac.Role{rbac.RoleAdmin}},
	{BOMSubmitted, BOMDraft}:    {Roles: []rbac.Role{rbac.RoleProcurement, rbac.RoleAdmin}},
	{BOMApproved, BOMRejected}:  {Roles: []rbac.Role{rbac.RoleAdmin}},
	{BOMRejected, BOMDraft}:     {Roles: []rbac.Role{rbac.RoleProcurement, rbac.RoleAdmin}},
})

// DocumentMachine governs proposal-document reviews. Approving a version
// outdates previously approved siblings; Outdated is assigned by that step
// only.
var DocumentMachine = NewMachine("proposal document", map[Transition]Rule{
	{DocPending, DocApproved}: {Roles: []rbac.Role{rbac.RoleAdmin}, Merge: true},
	{DocPending, DocRejected}: {Roles: []rbac.Role{rbac.RoleAdmin}},
})

// PurchaseOrderMachine governs the PO lifecycle. Vendors advance their own
// orders; cancellation stays with procurement and admin.
var PurchaseOrderMachine = NewMachine("purchase order", map[Transition]Rule{
	{POIssued, POAcknowledged}:    {Roles: []rbac.Role{rbac.RoleVendor, rbac.RoleProcurement, rbac.RoleAdmin}},
	{POAcknowledged, POFulfilled}: {Roles: []rbac.Role{rbac.RoleVendor, rbac.RoleProcurement, rbac.RoleAdmin}},
	{POIssued, POCancelled}:       {Roles: []rbac.Role{rbac.RoleProcurement, rbac.RoleAdmin}},
	{POAcknowledged, POCancelled}: {Roles: []rbac.Role{rbac.RoleProcurement, rbac.RoleAdmin}},
})
