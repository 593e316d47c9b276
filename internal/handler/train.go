package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/railway-reservation/internal/engine"
	"github.com/iliyamo/railway-reservation/internal/mirror"
	"github.com/iliyamo/railway-reservation/internal/model"
)

// TrainHandler serves the train catalogue from the mirror index and
// routes admin changes through the engine.
type TrainHandler struct {
	Engine *engine.Engine
	Index  *mirror.Index
}

func NewTrainHandler(eng *engine.Engine, idx *mirror.Index) *TrainHandler {
	if eng == nil || idx == nil {
		panic("nil dependency passed to NewTrainHandler")
	}
	return &TrainHandler{Engine: eng, Index: idx}
}

// PublicTrain is a train as listed to everyone: counters plus the
// waiting list length, without bookings.
type PublicTrain struct {
	model.Train
	WaitingCount int `json:"waiting_count"`
}

func publicTrains(views []mirror.TrainView) []PublicTrain {
	out := make([]PublicTrain, 0, len(views))
	for _, v := range views {
		out = append(out, PublicTrain{Train: v.Train, WaitingCount: v.WaitingCount()})
	}
	return out
}

// List handles GET /v1/trains.
func (h *TrainHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"trains": publicTrains(h.Index.List())})
}

// Search handles GET /v1/trains/search?source=&destination=&train_number=.
func (h *TrainHandler) Search(c echo.Context) error {
	q := mirror.Query{
		Source:      strings.TrimSpace(c.QueryParam("source")),
		Destination: strings.TrimSpace(c.QueryParam("destination")),
		Number:      strings.TrimSpace(c.QueryParam("train_number")),
	}
	return c.JSON(http.StatusOK, echo.Map{"trains": publicTrains(h.Index.Search(q))})
}

// Get handles GET /v1/trains/:id.
func (h *TrainHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid train id"})
	}
	v, err := h.Engine.Snapshot(id)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, PublicTrain{Train: v.Train, WaitingCount: v.WaitingCount()})
}

// WaitingList handles GET /v1/trains/:id/waiting-list.
func (h *TrainHandler) WaitingList(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid train id"})
	}
	v, err := h.Engine.Snapshot(id)
	if err != nil {
		return engineError(c, err)
	}
	entries := v.Waitlist
	if entries == nil {
		entries = []model.WaitlistEntry{}
	}
	return c.JSON(http.StatusOK, echo.Map{"train_id": id, "waiting_list": entries})
}

type createTrainRequest struct {
	Number        string          `json:"train_number"`
	Name          string          `json:"train_name"`
	Source        string          `json:"source"`
	Destination   string          `json:"destination"`
	Fare          decimal.Decimal `json:"fare"`
	DepartureTime string          `json:"departure_time"`
	ArrivalTime   string          `json:"arrival_time"`
	TotalSeats    int             `json:"total_seats"`
}

// Create handles POST /v1/trains (admin).
func (h *TrainHandler) Create(c echo.Context) error {
	var req createTrainRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	t, err := h.Engine.CreateTrain(c.Request().Context(), model.Train{
		Number:        strings.TrimSpace(req.Number),
		Name:          strings.TrimSpace(req.Name),
		Source:        strings.TrimSpace(req.Source),
		Destination:   strings.TrimSpace(req.Destination),
		Fare:          req.Fare,
		DepartureTime: strings.TrimSpace(req.DepartureTime),
		ArrivalTime:   strings.TrimSpace(req.ArrivalTime),
		TotalSeats:    req.TotalSeats,
	})
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// AdjustCapacity handles PATCH /v1/trains/:id/capacity (admin) with a
// body of {"total_seats": n}.
func (h *TrainHandler) AdjustCapacity(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid train id"})
	}
	var req struct {
		TotalSeats *int `json:"total_seats"`
	}
	if err := c.Bind(&req); err != nil || req.TotalSeats == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_seats is required"})
	}
	out, err := h.Engine.AdjustCapacity(c.Request().Context(), id, *req.TotalSeats)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, out.Train)
}

// Delete handles DELETE /v1/trains/:id (admin).
func (h *TrainHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid train id"})
	}
	if err := h.Engine.DeleteTrain(c.Request().Context(), id); err != nil {
		return engineError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
