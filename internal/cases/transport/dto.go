// Package transport defines the wire shapes for the cases module.
package transport

import "time"

// CreateCaseRequest is the payload for opening a new case.
type CreateCaseRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"required"`
	Address     *string    `json:"address,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	HandymanID  *string    `json:"handymanId,omitempty" validate:"omitempty,uuid"`
	ClientID    *string    `json:"clientId,omitempty" validate:"omitempty,uuid"`
}

// TransitionRequest is the payload for a case status transition. HandymanID
// is only honored for headquarters actors; Status may be omitted for an
// assignment that leaves the lifecycle where it is.
type TransitionRequest struct {
	Status     string  `json:"status,omitempty"`
	HandymanID *string `json:"handymanId,omitempty" validate:"omitempty,uuid"`
}

// CreateMessageRequest is the payload for posting a message on a case.
type CreateMessageRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// UserSummary is the public shape of a user referenced from a case.
type UserSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CaseResponse is the list shape of a case.
type CaseResponse struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Address     *string      `json:"address,omitempty"`
	ScheduledAt *time.Time   `json:"scheduledAt,omitempty"`
	Status      string       `json:"status"`
	Handyman    *UserSummary `json:"handyman,omitempty"`
	Client      *UserSummary `json:"client,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// CaseDetailResponse adds the message thread to the case shape.
type CaseDetailResponse struct {
	CaseResponse
	Messages []MessageResponse `json:"messages"`
}

// MessageResponse is the wire shape of a case message.
type MessageResponse struct {
	ID        string      `json:"id"`
	CaseID    string      `json:"caseId"`
	Sender    UserSummary `json:"sender"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"createdAt"`
}

// DashboardResponse is the headquarters overview.
type DashboardResponse struct {
	PendingCount    int            `json:"pendingCount"`
	AssignedCount   int            `json:"assignedCount"`
	InProgressCount int            `json:"inProgressCount"`
	CompletedToday  int            `json:"completedToday"`
	TotalActive     int            `json:"totalActive"`
	RecentCases     []CaseResponse `json:"recentCases"`
}
