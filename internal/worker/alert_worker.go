package worker

import (
	"github.com/Jessir1108/Capta-Tickets/internal/service"
)

// StartAlertWorker registers alert handlers.
func StartAlertWorker(alertService *service.AlertService) {
	if alertService == nil {
		return
	}
	alertService.RegisterHandlers()
}
