package calendar

import (
	"clinic-sync/core/cache"
	"clinic-sync/core/database"
	"clinic-sync/core/middleware"
	"clinic-sync/core/tasks"
	apptservice "clinic-sync/modules/appointment/service"
	"clinic-sync/modules/calendar/client"
	"clinic-sync/modules/calendar/controller"
	"clinic-sync/modules/calendar/repository"
	"clinic-sync/modules/calendar/router"
	"clinic-sync/modules/calendar/service"
	credrepo "clinic-sync/modules/credentials/repository"
	credservice "clinic-sync/modules/credentials/service"

	"github.com/labstack/echo/v4"
)

// Module holds the calendar sync services that outlive request handling:
// the worker needs the task handlers and startup needs the renewal sweep.
type Module struct {
	Outbound service.OutboundSyncService
	Channels service.ChannelService
	Inbound  service.InboundSyncService
}

// Init wires the calendar sync engines around the appointment and credential
// services: the outbound engine subscribes to appointment writes, the channel
// manager to the connection lifecycle.
func Init(
	e *echo.Echo,
	db database.IDatabase,
	c cache.Cache,
	scheduler tasks.Scheduler,
	vault credservice.VaultService,
	appts apptservice.AppointmentService,
) *Module {
	api := client.NewGoogleClient(vault)

	linkRepo := repository.NewSyncLinkRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	settingsRepo := credrepo.NewSettingsRepository(db)

	outbound := service.NewOutboundService(api, vault, linkRepo, c)
	channels := service.NewChannelService(api, channelRepo, scheduler, vault)
	inbound := service.NewInboundService(api, vault, channels, appts, linkRepo, settingsRepo, c, scheduler)

	appts.RegisterSyncListener(outbound)
	vault.RegisterObserver(channels)

	ctrl := controller.NewCalendarController(inbound)
	mw := middleware.NewMiddleware()
	router.NewCalendarRouter(ctrl).Setup(e, mw)

	return &Module{Outbound: outbound, Channels: channels, Inbound: inbound}
}

// TaskHandlers exposes the asynq handlers for the worker loop.
func (m *Module) TaskHandlers() []tasks.Handler {
	return TaskHandlers(m.Inbound, m.Channels)
}
