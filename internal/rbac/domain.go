// Package rbac maps roles to capability sets. Every role's grants are
// enumerated here once; the same Can check guards both route middleware and
// service-layer operations so the two cannot drift.
package rbac

import "github.com/gearbox-hq/gearbox/internal/shared"

// Resource identifies a guarded entity type.
type Resource string

const (
	ResInvoices      Resource = "invoices"
	ResPayments      Resource = "payments"
	ResCustomers     Resource = "customers"
	ResVehicles      Resource = "vehicles"
	ResParts         Resource = "parts"
	ResTasks         Resource = "tasks"
	ResAttendance    Resource = "attendance"
	ResExpenses      Resource = "expenses"
	ResReports       Resource = "reports"
	ResOrganizations Resource = "organizations"
	ResUsers         Resource = "users"
	ResSubscriptions Resource = "subscriptions"
)

// Action identifies what the caller wants to do with a resource.
type Action string

const (
	ActView   Action = "view"
	ActCreate Action = "create"
	ActEdit   Action = "edit"
	ActDelete Action = "delete"
)

type capability struct {
	resource Resource
	action   Action
}

// grants enumerates each role's capability set. Superadmin is handled in Can
// directly rather than listed: it holds every capability including tenant
// administration.
var grants = map[shared.Role]map[capability]struct{}{
	shared.RoleOwner: capabilitySet(
		allOf(ResInvoices), allOf(ResPayments), allOf(ResCustomers), allOf(ResVehicles),
		allOf(ResParts), allOf(ResTasks), allOf(ResAttendance), allOf(ResExpenses),
		allOf(ResUsers), viewOnly(ResReports), viewOnly(ResSubscriptions),
	),
	shared.RoleManager: capabilitySet(
		allOf(ResInvoices), allOf(ResPayments), allOf(ResCustomers), allOf(ResVehicles),
		allOf(ResParts), allOf(ResTasks), allOf(ResAttendance), allOf(ResExpenses),
		viewOnly(ResReports),
	),
	shared.RoleAccountant: capabilitySet(
		allOf(ResInvoices), allOf(ResPayments), allOf(ResExpenses),
		viewOnly(ResCustomers), viewOnly(ResVehicles), viewOnly(ResParts),
		viewOnly(ResReports),
	),
	shared.RoleMechanic: capabilitySet(
		[]capability{{ResTasks, ActView}, {ResTasks, ActEdit}},
		viewOnly(ResParts), viewOnly(ResVehicles),
		[]capability{{ResAttendance, ActView}, {ResAttendance, ActCreate}},
	),
	shared.RoleReceptionist: capabilitySet(
		[]capability{{ResCustomers, ActView}, {ResCustomers, ActCreate}, {ResCustomers, ActEdit}},
		[]capability{{ResVehicles, ActView}, {ResVehicles, ActCreate}, {ResVehicles, ActEdit}},
		viewOnly(ResInvoices), viewOnly(ResTasks),
		[]capability{{ResAttendance, ActView}, {ResAttendance, ActCreate}},
	),
}

// Can reports whether the role may perform action on resource.
func Can(role shared.Role, resource Resource, action Action) bool {
	if role == shared.RoleSuperadmin {
		return true
	}
	set, ok := grants[role]
	if !ok {
		return false
	}
	_, ok = set[capability{resource, action}]
	return ok
}

// Capabilities returns the resource/action pairs granted to the role,
// used by the permissions endpoint so clients can gate their own UI from
// the same source of truth.
func Capabilities(role shared.Role) map[Resource][]Action {
	out := make(map[Resource][]Action)
	if role == shared.RoleSuperadmin {
		for _, res := range []Resource{
			ResInvoices, ResPayments, ResCustomers, ResVehicles, ResParts, ResTasks,
			ResAttendance, ResExpenses, ResReports, ResOrganizations, ResUsers, ResSubscriptions,
		} {
			out[res] = []Action{ActView, ActCreate, ActEdit, ActDelete}
		}
		return out
	}
	for cap := range grants[role] {
		out[cap.resource] = append(out[cap.resource], cap.action)
	}
	return out
}

func allOf(res Resource) []capability {
	return []capability{
		{res, ActView}, {res, ActCreate}, {res, ActEdit}, {res, ActDelete},
	}
}

func viewOnly(res Resource) []capability {
	return []capability{{res, ActView}}
}

func capabilitySet(groups ...[]capability) map[capability]struct{} {
	set := make(map[capability]struct{})
	for _, group := range groups {
		for _, cap := range group {
			set[cap] = struct{}{}
		}
	}
	return set
}
