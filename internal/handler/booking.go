package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/railway-reservation/internal/engine"
	"github.com/iliyamo/railway-reservation/internal/model"
	"github.com/iliyamo/railway-reservation/internal/service"
	"github.com/iliyamo/railway-reservation/internal/utils"
)

// BookingHandler exposes reservations to passengers.  Every mutating
// call goes through the allocation engine; committed outcomes are
// announced on the event queue.
type BookingHandler struct {
	Engine   *engine.Engine
	Notifier *service.Notifier
}

// NewBookingHandler panics when eng is nil.
func NewBookingHandler(eng *engine.Engine, notifier *service.Notifier) *BookingHandler {
	if eng == nil {
		panic("nil engine passed to NewBookingHandler")
	}
	if notifier == nil {
		notifier = service.NewNotifier(nil, 0)
	}
	return &BookingHandler{Engine: eng, Notifier: notifier}
}

type bookingRequest struct {
	TrainID   uint64          `json:"train_id"`
	Passenger model.Passenger `json:"passenger"`
}

func validatePassenger(p model.Passenger) string {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return "passenger name is required"
	case p.Age <= 0:
		return "passenger age must be positive"
	case strings.TrimSpace(p.Gender) == "":
		return "passenger gender is required"
	case strings.TrimSpace(p.Phone) == "":
		return "passenger phone is required"
	}
	return ""
}

// Create handles POST /v1/bookings.  A free seat yields 201 with the
// PNR and seat number; a full train yields 202 with the waiting list
// position.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req bookingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.TrainID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "train_id is required"})
	}
	req.Passenger.Name = strings.TrimSpace(req.Passenger.Name)
	if msg := validatePassenger(req.Passenger); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	ctx := c.Request().Context()
	out, err := h.Engine.Reserve(ctx, req.TrainID, userID, req.Passenger)
	if err != nil {
		return engineError(c, err)
	}
	h.Notifier.Notify(out)

	if out.Kind == engine.Waitlisted {
		return c.JSON(http.StatusAccepted, echo.Map{
			"status":   out.Kind,
			"train_id": out.Train.ID,
			"position": out.Position(),
			"entry":    out.Entry,
		})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"status":      out.Kind,
		"pnr":         out.PNR(),
		"seat_number": out.Seat(),
		"train_id":    out.Train.ID,
		"booking":     out.Reservation,
	})
}

// Cancel handles DELETE /v1/bookings/:pnr.  Only the holder or an admin
// may cancel.  When the waiting list was non-empty the response carries
// the PNR issued to the promoted passenger.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	pnr := strings.ToUpper(strings.TrimSpace(c.Param("pnr")))
	if !utils.ValidPNR(pnr) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pnr"})
	}

	ctx := c.Request().Context()
	r, err := h.Engine.Lookup(ctx, pnr)
	if err != nil {
		return engineError(c, err)
	}
	if r.HolderID != userID && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "booking belongs to another user"})
	}
	out, err := h.Engine.Release(ctx, pnr)
	if err != nil {
		return engineError(c, err)
	}
	h.Notifier.Notify(out)

	resp := echo.Map{
		"status":          model.StatusCancelled,
		"pnr":             pnr,
		"train_id":        out.Train.ID,
		"available_seats": out.Train.AvailableSeats,
	}
	if p := out.PromotedPNR(); p != "" {
		resp["promoted_pnr"] = p
	}
	return c.JSON(http.StatusOK, resp)
}

// Mine handles GET /v1/bookings/mine.
func (h *BookingHandler) Mine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	rs, err := h.Engine.ReservationsByHolder(c.Request().Context(), userID)
	if err != nil {
		return engineError(c, err)
	}
	if rs == nil {
		rs = []model.Reservation{}
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": rs})
}

// All handles GET /v1/bookings/all: every booking of every train,
// cancelled ones included, newest first.
func (h *BookingHandler) All(c echo.Context) error {
	rs, err := h.Engine.AllReservations(c.Request().Context())
	if err != nil {
		return engineError(c, err)
	}
	if rs == nil {
		rs = []model.Reservation{}
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": rs})
}

// ByPNR handles GET /v1/bookings/pnr/:pnr, the public status lookup.
func (h *BookingHandler) ByPNR(c echo.Context) error {
	pnr := strings.ToUpper(strings.TrimSpace(c.Param("pnr")))
	if !utils.ValidPNR(pnr) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pnr"})
	}
	r, err := h.Engine.Lookup(c.Request().Context(), pnr)
	if err != nil {
		return engineError(c, err)
	}
	resp := echo.Map{"booking": r}
	if v, err := h.Engine.Snapshot(r.TrainID); err == nil {
		resp["train"] = v.Train
	}
	return c.JSON(http.StatusOK, resp)
}
