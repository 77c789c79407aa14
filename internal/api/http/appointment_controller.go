package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/immxrtalbeast/counsel_portal/internal/api/http/converter"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
	"github.com/immxrtalbeast/counsel_portal/internal/repository"
	"github.com/immxrtalbeast/counsel_portal/internal/service"
)

type AppointmentController struct {
	appointments service.AppointmentInteractor
	video        service.VideoInteractor
	log          *slog.Logger
}

func NewAppointmentController(appointments service.AppointmentInteractor, video service.VideoInteractor, log *slog.Logger) *AppointmentController {
	if log == nil {
		log = slog.Default()
	}
	return &AppointmentController{appointments: appointments, video: video, log: log}
}

func (c *AppointmentController) BookAppointment(ctx *gin.Context) {
	var req service.BookAppointmentInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request body", err)
		return
	}

	appt, err := c.appointments.BookAppointment(ctx.Request.Context(), callerFrom(ctx), req)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"appointment": appt})
}

func (c *AppointmentController) GetAppointment(ctx *gin.Context) {
	id, ok := appointmentParam(ctx)
	if !ok {
		return
	}

	appt, err := c.appointments.GetAppointment(ctx.Request.Context(), callerFrom(ctx), id)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"appointment": appt})
}

// ListAppointments accepts ?status=a,b and RFC 3339 ?from= / ?to= bounds.
func (c *AppointmentController) ListAppointments(ctx *gin.Context) {
	var filter repository.AppointmentFilter
	if v := ctx.Query("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			filter.Statuses = append(filter.Statuses, domain.AppointmentStatus(strings.TrimSpace(s)))
		}
	}

	var err error
	if filter.From, err = timeQuery(ctx, "from"); err != nil {
		badRequest(ctx, "invalid from", err)
		return
	}
	if filter.To, err = timeQuery(ctx, "to"); err != nil {
		badRequest(ctx, "invalid to", err)
		return
	}

	appts, err := c.appointments.ListAppointments(ctx.Request.Context(), callerFrom(ctx), filter)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	if appts == nil {
		appts = []*domain.Appointment{}
	}

	ctx.JSON(http.StatusOK, gin.H{"appointments": appts})
}

func (c *AppointmentController) UpdateStatus(ctx *gin.Context) {
	id, ok := appointmentParam(ctx)
	if !ok {
		return
	}

	type request struct {
		Status domain.AppointmentStatus `json:"status" binding:"required"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request body", err)
		return
	}

	appt, err := c.appointments.UpdateAppointmentStatus(ctx.Request.Context(), callerFrom(ctx), id, req.Status)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"appointment": appt})
}

func (c *AppointmentController) Reschedule(ctx *gin.Context) {
	id, ok := appointmentParam(ctx)
	if !ok {
		return
	}

	var req service.RescheduleInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request body", err)
		return
	}

	appt, err := c.appointments.RescheduleAppointment(ctx.Request.Context(), callerFrom(ctx), id, req)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"appointment": appt})
}

func (c *AppointmentController) JoinWindow(ctx *gin.Context) {
	id, ok := appointmentParam(ctx)
	if !ok {
		return
	}

	info, err := c.appointments.JoinWindow(ctx.Request.Context(), callerFrom(ctx), id)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"join": info})
}

func (c *AppointmentController) ListRooms(ctx *gin.Context) {
	id, ok := appointmentParam(ctx)
	if !ok {
		return
	}

	rooms, err := c.video.ListRoomsForAppointment(ctx.Request.Context(), callerFrom(ctx), id)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"rooms": converter.RoomsToApi(rooms)})
}

func appointmentParam(ctx *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param("appointmentID"))
	if err != nil {
		badRequest(ctx, "invalid appointment id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func timeQuery(ctx *gin.Context, key string) (time.Time, error) {
	v := ctx.Query(key)
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
