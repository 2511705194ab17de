package server

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"civicwatch/geocoder"
	"civicwatch/report"
	"civicwatch/server/api"
)

const (
	EndPointHelp           = "/help"
	EndPointGeocode        = "/geocode"
	EndPointReverseGeocode = "/reverse-geocode"
	EndPointReports        = "/reports"
	EndPointReport         = "/reports/:id"
	EndPointSightings      = "/reports/:id/sightings"
	EndPointResolved       = "/reports/:id/resolved"
	EndPointUserStatus     = "/reports/:id/user-status"
)

var serverPort = flag.Int("port", 8080, "The port used by the service.")

// Handler carries the injected collaborators for all endpoints.
type Handler struct {
	reports  *report.Service
	geocoder geocoder.Geocoder
}

func NewHandler(reports *report.Service, gc geocoder.Geocoder) *Handler {
	return &Handler{reports: reports, geocoder: gc}
}

// Router wires all endpoints. Split out from StartService so tests can mount
// it on httptest.
func Router(h *Handler) *gin.Engine {
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Device-Id"},
		AllowOrigins:     []string{"*"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET(EndPointHelp, h.Help)
	router.POST(EndPointGeocode, h.Geocode)
	router.POST(EndPointReverseGeocode, h.ReverseGeocode)
	router.GET(EndPointReports, h.ListReports)
	router.POST(EndPointReports, h.CreateReport)
	router.GET(EndPointReport, h.GetReport)
	router.PUT(EndPointReport, h.UpdateReportStatus)
	router.DELETE(EndPointReport, h.DeleteReport)
	router.POST(EndPointSightings, h.AddSighting)
	router.POST(EndPointResolved, h.AddResolved)
	router.GET(EndPointUserStatus, h.UserStatus)

	return router
}

func StartService(h *Handler) error {
	log.Infof("Starting the service on port %d...", *serverPort)
	return Router(h).Run(fmt.Sprintf(":%d", *serverPort))
}

func (h *Handler) Help(c *gin.Context) {
	c.String(http.StatusOK, "CivicWatch report service. See /reports.")
}

// respondError maps the error taxonomy onto HTTP statuses. Anything outside
// the taxonomy becomes a generic 500 so a bad request never kills the process.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, report.ErrValidation):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, report.ErrNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Report not found"})
	case errors.Is(err, report.ErrAlreadyVoted):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, report.ErrUpstreamUnavailable):
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "Upstream service unavailable, please retry"})
	default:
		log.Errorf("Unexpected error handling %s: %v", c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Internal error"})
	}
}
