// Package notification turns domain events into queued LINE push messages
// and delivers them from the outbox.
package notification

import (
	"fmt"
	"time"
)

// Template keys stored on outbox records.
const (
	TemplateCaseAssigned      = "case_assigned"
	TemplateCaseStatusChanged = "case_status_changed"
	TemplateNewMessage        = "new_message"
	TemplateInvoicePaid       = "invoice_paid"
	TemplateCaseReminder      = "case_reminder"
)

const appName = "ゲンバディ"

func caseAssignedText(caseTitle string) string {
	return fmt.Sprintf("【%s】新しい案件「%s」の担当者に決定しました。アプリから詳細をご確認ください。", appName, caseTitle)
}

func caseStatusChangedText(caseTitle, statusLabel string) string {
	return fmt.Sprintf("【%s】案件「%s」が%s。", appName, caseTitle, statusLabel)
}

func newMessageText(caseTitle, senderName string) string {
	return fmt.Sprintf("【%s】案件「%s」に%sさんから新しいメッセージが届きました。", appName, caseTitle, senderName)
}

func invoicePaidText(caseTitle string) string {
	return fmt.Sprintf("【%s】案件「%s」のお支払いが完了しました。", appName, caseTitle)
}

func caseReminderText(caseTitle string, scheduledAt time.Time) string {
	return fmt.Sprintf("【%s】案件「%s」の予定時刻（%s）が近づいています。", appName, caseTitle, scheduledAt.Format("1月2日 15:04"))
}
