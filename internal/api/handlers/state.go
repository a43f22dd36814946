package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/procendp/stenodesk/internal/config"
	"github.com/procendp/stenodesk/internal/notification"
	"github.com/procendp/stenodesk/internal/orders"
	"github.com/procendp/stenodesk/internal/repositories"
)

var (
	Orders *orders.Service
	Notify *notification.Coordinator
)

// Init wires the handler-level services. Called once from main after
// the database and object store are up.
func Init() {
	log := logrus.StandardLogger()
	cfg := config.Envs.Notify

	email := notification.NewResendClient(cfg)
	sms := notification.NewSensClient(cfg, cfg.SMSAccessKey, cfg.SMSSecretKey)

	Notify = notification.NewCoordinator(repositories.Data, email, sms, repositories.Objects, log)
	Orders = orders.NewService(repositories.Data, Notify, repositories.Objects, log)
}
