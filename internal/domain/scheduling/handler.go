package scheduling

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medbook/medbook/internal/platform/apperr"
	"github.com/medbook/medbook/internal/platform/auth"
	"github.com/medbook/medbook/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the public slot listing on api and everything else
// behind authed, which must already carry the JWT middleware.
func (h *Handler) RegisterRoutes(api *echo.Group, authed *echo.Group) {
	api.GET("/doctors/:id/slots", h.ListAvailableSlots)

	doctor := auth.RequireRole(auth.RoleDoctor)
	authed.POST("/slots", h.CreateSlot, doctor)
	authed.POST("/slots/generate-day", h.GenerateDaySlots, doctor)
	authed.GET("/slots/my", h.ListMySlots, doctor)
	authed.DELETE("/slots/:id", h.DeleteSlot, doctor)

	patient := auth.RequireRole(auth.RolePatient)
	authed.POST("/appointments", h.BookAppointment, patient)
	authed.DELETE("/appointments/:id", h.CancelAppointment, patient)

	// role is dispatched in the service
	authed.GET("/appointments/my", h.ListMyAppointments)
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validationf("invalid %s", name)
	}
	return id, nil
}

type messageResponse struct {
	Message string `json:"message"`
}

// -- Slot Handlers --

type createSlotRequest struct {
	StartTime *time.Time `json:"startTime"`
}

func (h *Handler) CreateSlot(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var req createSlotRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validationf("invalid request body")
	}
	sl, err := h.svc.CreateSlot(c.Request().Context(), id, req.StartTime)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sl)
}

type generateDayRequest struct {
	Date string `json:"date"`
}

type generateDayResponse struct {
	Message string `json:"message"`
	*GenerationResult
}

func (h *Handler) GenerateDaySlots(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var req generateDayRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validationf("invalid request body")
	}
	res, err := h.svc.GenerateDaySlots(c.Request().Context(), id, req.Date)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, generateDayResponse{
		Message:          "schedule for " + res.Date + " generated",
		GenerationResult: res,
	})
}

type mySlot struct {
	ID        int64     `json:"id"`
	StartTime time.Time `json:"start_time"`
	IsBooked  bool      `json:"is_booked"`
}

type mySlotsResponse struct {
	Slots      []mySlot        `json:"slots"`
	Pagination pagination.Meta `json:"pagination"`
}

func (h *Handler) ListMySlots(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	page, err := h.svc.ListMySlots(c.Request().Context(), id, pagination.FromContext(c))
	if err != nil {
		return err
	}
	out := make([]mySlot, 0, len(page.Items))
	for _, s := range page.Items {
		out = append(out, mySlot{ID: s.ID, StartTime: s.StartTime, IsBooked: s.IsBooked})
	}
	return c.JSON(http.StatusOK, mySlotsResponse{Slots: out, Pagination: page.Meta})
}

func (h *Handler) DeleteSlot(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	slotID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSlot(c.Request().Context(), id, slotID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "slot deleted"})
}

type availableSlot struct {
	ID        int64     `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type availableSlotsResponse struct {
	Message string          `json:"message,omitempty"`
	Slots   []availableSlot `json:"slots"`
}

func (h *Handler) ListAvailableSlots(c echo.Context) error {
	doctorID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	res, err := h.svc.ListAvailableSlots(c.Request().Context(), doctorID)
	if err != nil {
		return err
	}
	out := availableSlotsResponse{Slots: make([]availableSlot, 0, len(res.Slots))}
	if res.Empty() {
		out.Message = "this doctor has no free slots"
	}
	for _, s := range res.Slots {
		out.Slots = append(out.Slots, availableSlot{ID: s.ID, StartTime: s.StartTime, EndTime: s.EndTime})
	}
	return c.JSON(http.StatusOK, out)
}

// -- Appointment Handlers --

type bookRequest struct {
	TimeSlotID int64 `json:"timeSlotId"`
}

type bookResponse struct {
	Message     string       `json:"message"`
	Appointment *Appointment `json:"appointment"`
}

func (h *Handler) BookAppointment(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validationf("invalid request body")
	}
	appt, err := h.svc.BookAppointment(c.Request().Context(), id, req.TimeSlotID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, bookResponse{Message: "appointment booked", Appointment: appt})
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	apptID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.CancelAppointment(c.Request().Context(), id, apptID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "appointment cancelled"})
}

func (h *Handler) ListMyAppointments(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	res, err := h.svc.ListMyAppointments(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res.Items())
}
