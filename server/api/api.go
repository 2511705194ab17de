// Package api defines the request and response shapes of the HTTP surface.
package api

import (
	"civicwatch/report"
)

type GeocodeArgs struct {
	Address string `json:"address" binding:"required"`
}

type GeocodeResponse struct {
	LocationName string  `json:"location_name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

type ReverseGeocodeArgs struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

type ReverseGeocodeResponse struct {
	Address string `json:"address"`
}

type CreateReportResponse struct {
	Message  string `json:"message"`
	ReportID string `json:"report_id"`
}

type ReportsResponse struct {
	Reports []*report.Report `json:"reports"`
	Total   int              `json:"total"`
}

type UpdateStatusArgs struct {
	Status string `json:"status" binding:"required"`
}

type SightingResponse struct {
	Message        string `json:"message"`
	SightingsCount int    `json:"sightings_count"`
}

// ResolvedResponse reports either the running tally or, at the threshold,
// that the report was retired.
type ResolvedResponse struct {
	Message       string `json:"message"`
	ResolvedCount int    `json:"resolved_count,omitempty"`
	ReportDeleted bool   `json:"report_deleted,omitempty"`
}

type UserStatusResponse struct {
	HasSighted  bool `json:"has_sighted"`
	HasResolved bool `json:"has_resolved"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
