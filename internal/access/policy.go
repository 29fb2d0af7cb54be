// Package access provides the stateless authorization policy combining a
// caller's role with ownership facts about the entity being acted on.
// It performs no I/O; callers load the facts and ask for a decision.
package access

import "github.com/google/uuid"

// Role is a user's role within the portal.
type Role string

const (
	RoleHeadquarters Role = "HEADQUARTERS"
	RoleHandyman     Role = "HANDYMAN"
	RoleEndUser      Role = "END_USER"
)

var knownRoles = map[Role]struct{}{
	RoleHeadquarters: {},
	RoleHandyman:     {},
	RoleEndUser:      {},
}

// IsKnownRole reports whether the role is one of the defined portal roles.
func IsKnownRole(role Role) bool {
	_, ok := knownRoles[role]
	return ok
}

// CaseFacts carries the ownership facts needed to authorize a case action.
type CaseFacts struct {
	HandymanID *uuid.UUID
	ClientID   *uuid.UUID
}

// handymanTargets is the set of case statuses a HANDYMAN may request on a
// case they are assigned to. All other roles and targets go through the
// headquarters rules.
var handymanTargets = map[string]struct{}{
	"IN_PROGRESS": {},
	"COMPLETED":   {},
}

// CanViewCase reports whether the actor may read the case.
// Headquarters reads everything, a handyman reads assigned cases and an end
// user reads cases where they are the client.
func CanViewCase(role Role, actorID uuid.UUID, facts CaseFacts) bool {
	switch role {
	case RoleHeadquarters:
		return true
	case RoleHandyman:
		return facts.HandymanID != nil && *facts.HandymanID == actorID
	case RoleEndUser:
		return facts.ClientID != nil && *facts.ClientID == actorID
	default:
		return false
	}
}

// CanListAllCases reports whether the actor may list cases without an
// ownership filter.
func CanListAllCases(role Role) bool {
	return role == RoleHeadquarters
}

// CanCreateCase reports whether the actor may create cases.
func CanCreateCase(role Role) bool {
	return role == RoleHeadquarters
}

// CanAssignHandyman reports whether the actor may set or replace the
// handyman on a case.
func CanAssignHandyman(role Role) bool {
	return role == RoleHeadquarters
}

// CanRequestCaseStatus reports whether the actor may request the given target
// status on the case. It checks role and ownership only; whether the edge is
// valid from the case's current status is the lifecycle's concern.
func CanRequestCaseStatus(role Role, actorID uuid.UUID, facts CaseFacts, target string) bool {
	switch role {
	case RoleHeadquarters:
		return true
	case RoleHandyman:
		if facts.HandymanID == nil || *facts.HandymanID != actorID {
			return false
		}
		_, ok := handymanTargets[target]
		return ok
	default:
		return false
	}
}

// CanManageInvoices reports whether the actor may create, read or advance
// invoices. End customers pay invoices but never see the back-office surface.
func CanManageInvoices(role Role) bool {
	return role == RoleHeadquarters
}

// CanCreateCheckout reports whether the actor may request a payment checkout
// URL for an invoice. Any authenticated portal role may hand the payment page
// to the customer.
func CanCreateCheckout(role Role) bool {
	return IsKnownRole(role)
}

// CanPostMessage reports whether the actor may post a message on the case.
// Posting requires the same visibility as reading.
func CanPostMessage(role Role, actorID uuid.UUID, facts CaseFacts) bool {
	return CanViewCase(role, actorID, facts)
}
