// Package domain provides core business rules for the cases bounded context.
package domain

// Status is the lifecycle state of a case.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAssigned   Status = "ASSIGNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

var knownStatuses = map[Status]struct{}{
	StatusPending:    {},
	StatusAssigned:   {},
	StatusInProgress: {},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// IsKnownStatus reports whether the status is one of the defined case states.
func IsKnownStatus(status Status) bool {
	_, ok := knownStatuses[status]
	return ok
}

// successors maps each status to the set of directly reachable next statuses.
// The graph is linear with CANCELLED as an escape from every non-terminal
// state; skipping edges (e.g. PENDING straight to COMPLETED) is invalid.
var successors = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusAssigned:  {},
		StatusCancelled: {},
	},
	StatusAssigned: {
		StatusInProgress: {},
		StatusCancelled:  {},
	},
	StatusInProgress: {
		StatusCompleted: {},
		StatusCancelled: {},
	},
	StatusCompleted: {},
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
	return status == StatusCompleted || status == StatusCancelled
}

// statusLabels are the customer-facing Japanese display labels used in push
// notification texts, carried over from the LINE message templates.
var statusLabels = map[Status]string{
	StatusAssigned:   "担当者に決定しました",
	StatusInProgress: "対応中に変更されました",
	StatusCompleted:  "完了しました",
	StatusCancelled:  "キャンセルされました",
}

// StatusLabel returns the display label for a status, falling back to the
// raw status value when no label is defined.
func StatusLabel(status Status) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}
