package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/railway-reservation/internal/engine"
	"github.com/iliyamo/railway-reservation/internal/mirror"
)

// ReportHandler serves admin reports and maintenance actions.
type ReportHandler struct {
	Engine *engine.Engine
	Index  *mirror.Index
}

func NewReportHandler(eng *engine.Engine, idx *mirror.Index) *ReportHandler {
	return &ReportHandler{Engine: eng, Index: idx}
}

// Summary handles GET /v1/reports/summary.
func (h *ReportHandler) Summary(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Index.Summary())
}

// ReloadMirror handles POST /v1/admin/mirror/reload.  Writers are
// paused for the duration of the reload.
func (h *ReportHandler) ReloadMirror(c echo.Context) error {
	if err := h.Engine.RebuildMirror(c.Request().Context()); err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"trains": h.Index.Len()})
}
