// Package scheduler runs background work over asynq: draining the
// notification outbox and firing reminders for scheduled case visits.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskNotificationOutboxDue = "notification.outbox.due"

const TaskCaseReminder = "cases.reminder"

type NotificationOutboxDuePayload struct {
	OutboxID string `json:"outboxId"`
}

type CaseReminderPayload struct {
	CaseID string `json:"caseId"`
}

func NewNotificationOutboxDueTask(payload NotificationOutboxDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationOutboxDue, data), nil
}

func ParseNotificationOutboxDuePayload(task *asynq.Task) (NotificationOutboxDuePayload, error) {
	var payload NotificationOutboxDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotificationOutboxDuePayload{}, err
	}
	return payload, nil
}

func NewCaseReminderTask(payload CaseReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCaseReminder, data), nil
}

func ParseCaseReminderPayload(task *asynq.Task) (CaseReminderPayload, error) {
	var payload CaseReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CaseReminderPayload{}, err
	}
	return payload, nil
}
