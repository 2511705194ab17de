package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"civicwatch/geo"
	"civicwatch/report"
	"civicwatch/server/api"
)

// ListReports returns reports newest first. When latitude and longitude are
// both supplied, only reports within the proximity radius of that point are
// returned. A status query filters on exact status.
func (h *Handler) ListReports(c *gin.Context) {
	var ref *geo.Point
	latStr, lngStr := c.Query("latitude"), c.Query("longitude")
	if latStr != "" || lngStr != "" {
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "latitude must be a decimal number"})
			return
		}
		lng, err := strconv.ParseFloat(lngStr, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "longitude must be a decimal number"})
			return
		}
		ref = &geo.Point{Latitude: lat, Longitude: lng}
	}

	reports, err := h.reports.List(c.Request.Context(), ref, c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	if reports == nil {
		reports = []*report.Report{}
	}

	c.JSON(http.StatusOK, api.ReportsResponse{Reports: reports, Total: len(reports)})
}
