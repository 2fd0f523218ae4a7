package appointment

import (
	"clinic-sync/core/database"
	"clinic-sync/core/middleware"
	"clinic-sync/modules/appointment/controller"
	"clinic-sync/modules/appointment/repository"
	"clinic-sync/modules/appointment/router"
	"clinic-sync/modules/appointment/service"

	"github.com/labstack/echo/v4"
)

// Init wires the appointment module and returns its service so the calendar
// module can subscribe to save/delete notifications.
func Init(e *echo.Echo, db database.IDatabase) service.AppointmentService {
	repo := repository.NewAppointmentRepository(db)
	svc := service.NewAppointmentService(repo)
	ctrl := controller.NewAppointmentController(svc)
	mw := middleware.NewMiddleware()

	router.NewAppointmentRouter(ctrl).Setup(e, mw)
	return svc
}
