package server

import (
	"errors"
	"net/http"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"civicwatch/geocoder"
	"civicwatch/server/api"
)

func (h *Handler) Geocode(c *gin.Context) {
	var args api.GeocodeArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Address is required"})
		return
	}

	loc, err := h.geocoder.Geocode(c.Request.Context(), args.Address)
	if errors.Is(err, geocoder.ErrNoMatch) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Location not found"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.GeocodeResponse{
		LocationName: loc.DisplayName,
		Latitude:     loc.Latitude,
		Longitude:    loc.Longitude,
	})
}

// ReverseGeocode resolves coordinates to an address. When the provider is
// down or times out we answer 503 but still hand the client a usable numeric
// label for the spot.
func (h *Handler) ReverseGeocode(c *gin.Context) {
	var args api.ReverseGeocodeArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Latitude and longitude are required"})
		return
	}
	lat, lng := *args.Latitude, *args.Longitude

	address, err := h.geocoder.ReverseGeocode(c.Request.Context(), lat, lng)
	if errors.Is(err, geocoder.ErrNoMatch) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Unable to get address"})
		return
	}
	if err != nil {
		log.Errorf("Reverse geocoding failed for %f,%f: %v", lat, lng, err)
		c.JSON(http.StatusServiceUnavailable, api.ReverseGeocodeResponse{
			Address: geocoder.FallbackLabel(lat, lng),
		})
		return
	}

	c.JSON(http.StatusOK, api.ReverseGeocodeResponse{Address: address})
}
