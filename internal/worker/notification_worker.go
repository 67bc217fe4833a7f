package worker

import (
	"github.com/spec-kit/helpdesk-bot/internal/service"
)

// StartNotificationWorker subscribes the notification service to ticket
// lifecycle events so channel and DM notices go out asynchronously.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
