// Package domain provides core business rules for the invoices bounded context.
package domain

// Status is the lifecycle state of an invoice or estimate.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSent      Status = "SENT"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

// Type distinguishes billing documents sharing the same lifecycle.
type Type string

const (
	TypeInvoice  Type = "INVOICE"
	TypeEstimate Type = "ESTIMATE"
)

var knownStatuses = map[Status]struct{}{
	StatusDraft:     {},
	StatusSent:      {},
	StatusPaid:      {},
	StatusCancelled: {},
}

// IsKnownStatus reports whether the status is one of the defined states.
func IsKnownStatus(status Status) bool {
	_, ok := knownStatuses[status]
	return ok
}

// IsKnownType reports whether the document type is defined.
func IsKnownType(t Type) bool {
	return t == TypeInvoice || t == TypeEstimate
}

// successors maps each status to its valid manual targets. PAID is also
// reachable through the payment reconciler, which shares the same absorbing
// write; once PAID or CANCELLED, nothing moves.
var successors = map[Status]map[Status]struct{}{
	StatusDraft: {
		StatusSent:      {},
		StatusCancelled: {},
	},
	StatusSent: {
		StatusPaid:      {},
		StatusCancelled: {},
	},
	StatusPaid:      {},
	StatusCancelled: {},
}

// CanTransition reports whether to is a valid direct successor of from.
func CanTransition(from, to Status) bool {
	targets, ok := successors[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// IsTerminal reports whether no further transitions are possible.
func IsTerminal(status Status) bool {
	return status == StatusPaid || status == StatusCancelled
}
