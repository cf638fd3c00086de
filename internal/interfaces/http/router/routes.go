package router

import (
	"github.com/schoolfees/backend/internal/infrastructure/auth"
	"github.com/schoolfees/backend/internal/interfaces/http/handler"
)

// Handlers are the HTTP handlers behind the fees API
type Handlers struct {
	Students      *handler.StudentHandler
	Ledgers       *handler.LedgerHandler
	Notifications *handler.NotificationHandler
	Reminders     *handler.ReminderHandler
	System        *handler.SystemHandler
}

// FeeRoutes returns the domain groups of the fees API
func FeeRoutes(h Handlers) []*DomainGroup {
	students := NewDomainGroup("students", "/students").
		POST("", auth.PermStudentWrite, h.Students.Create).
		GET("", auth.PermStudentRead, h.Students.List).
		GET("/:id", auth.PermStudentRead, h.Students.GetByID).
		GET("/:id/ledgers", auth.PermLedgerRead, h.Ledgers.ListByStudent).
		GET("/:id/installments/due", auth.PermLedgerRead, h.Ledgers.ListDue).
		GET("/:id/notifications", auth.PermNotificationRead, h.Notifications.ListByStudent).
		GET("/:id/notifications/unread-count", auth.PermNotificationRead, h.Notifications.UnreadCount).
		POST("/:id/notifications/read-all", auth.PermNotificationWrite, h.Notifications.MarkAllAsRead).
		POST("/:id/reminders", auth.PermReminderRun, h.Reminders.RemindStudent)

	ledgers := NewDomainGroup("ledgers", "/ledgers").
		POST("", auth.PermLedgerWrite, h.Ledgers.Create).
		GET("", auth.PermLedgerRead, h.Ledgers.List).
		GET("/:id", auth.PermLedgerRead, h.Ledgers.GetByID).
		PUT("/:id", auth.PermLedgerWrite, h.Ledgers.Update).
		DELETE("/:id", auth.PermLedgerDelete, h.Ledgers.Delete).
		POST("/:id/installments", auth.PermLedgerWrite, h.Ledgers.AppendInstallment).
		POST("/:id/payments", auth.PermPaymentRecord, h.Ledgers.RecordPayment)

	notifications := NewDomainGroup("notifications", "/notifications").
		POST("", auth.PermNotificationWrite, h.Notifications.Send).
		POST("/:id/read", auth.PermNotificationWrite, h.Notifications.MarkAsRead)

	reminders := NewDomainGroup("reminders", "/reminders").
		POST("/sweep", auth.PermReminderRun, h.Reminders.Sweep).
		POST("/scan", auth.PermReminderRun, h.Reminders.Scan).
		GET("/scheduler/status", auth.PermReminderRun, h.Reminders.SchedulerStatus)

	system := NewDomainGroup("system", "/system").
		GET("/info", "", h.System.GetSystemInfo)

	return []*DomainGroup{students, ledgers, notifications, reminders, system}
}
